package transaction

import "strings"

// Local spending categories
const (
	CategoryIncome        = "income"
	CategoryFood          = "food"
	CategoryGroceries     = "groceries"
	CategoryTransport     = "transport"
	CategoryHousing       = "housing"
	CategoryUtilities     = "utilities"
	CategoryHealth        = "health"
	CategoryEducation     = "education"
	CategoryShopping      = "shopping"
	CategoryEntertainment = "entertainment"
	CategoryTravel        = "travel"
	CategoryInvestments   = "investments"
	CategoryLoans         = "loans"
	CategoryFees          = "fees"
	CategoryTransfers     = "transfers"
	CategoryOther         = "other"
)

// categoryMapping maps provider category names onto the local
// taxonomy. Keys are lowercased provider names.
var categoryMapping = map[string]string{
	"income":                  CategoryIncome,
	"salary":                  CategoryIncome,
	"retirement":              CategoryIncome,
	"government aid":          CategoryIncome,
	"food and drinks":         CategoryFood,
	"restaurants":             CategoryFood,
	"delivery":                CategoryFood,
	"groceries":               CategoryGroceries,
	"supermarket":             CategoryGroceries,
	"transport":               CategoryTransport,
	"taxi and ride-hailing":   CategoryTransport,
	"public transport":        CategoryTransport,
	"gas stations":            CategoryTransport,
	"parking":                 CategoryTransport,
	"housing":                 CategoryHousing,
	"rent":                    CategoryHousing,
	"home improvement":        CategoryHousing,
	"utilities":               CategoryUtilities,
	"electricity":             CategoryUtilities,
	"water":                   CategoryUtilities,
	"internet":                CategoryUtilities,
	"telecommunications":      CategoryUtilities,
	"health":                  CategoryHealth,
	"pharmacy":                CategoryHealth,
	"healthcare":              CategoryHealth,
	"education":               CategoryEducation,
	"courses":                 CategoryEducation,
	"shopping":                CategoryShopping,
	"clothing":                CategoryShopping,
	"electronics":             CategoryShopping,
	"online shopping":         CategoryShopping,
	"entertainment":           CategoryEntertainment,
	"video streaming":         CategoryEntertainment,
	"gaming":                  CategoryEntertainment,
	"travel":                  CategoryTravel,
	"airlines":                CategoryTravel,
	"accommodation":           CategoryTravel,
	"investments":             CategoryInvestments,
	"fixed income":            CategoryInvestments,
	"variable income":         CategoryInvestments,
	"loans and financing":     CategoryLoans,
	"loans":                   CategoryLoans,
	"credit card payment":     CategoryTransfers,
	"transfers":               CategoryTransfers,
	"same person transfer":    CategoryTransfers,
	"bank fees":               CategoryFees,
	"taxes":                   CategoryFees,
	"interest and penalties":  CategoryFees,
}

// descriptionKeywords is the fallback used when the provider sends no
// category. First match wins, so more specific keywords come earlier.
var descriptionKeywords = []struct {
	keyword  string
	category string
}{
	{"salario", CategoryIncome},
	{"salary", CategoryIncome},
	{"payroll", CategoryIncome},
	{"uber", CategoryTransport},
	{"99app", CategoryTransport},
	{"posto", CategoryTransport},
	{"ifood", CategoryFood},
	{"restaurante", CategoryFood},
	{"mercado", CategoryGroceries},
	{"supermercado", CategoryGroceries},
	{"farmacia", CategoryHealth},
	{"drogaria", CategoryHealth},
	{"aluguel", CategoryHousing},
	{"condominio", CategoryHousing},
	{"energia", CategoryUtilities},
	{"internet", CategoryUtilities},
	{"netflix", CategoryEntertainment},
	{"spotify", CategoryEntertainment},
	{"pix", CategoryTransfers},
	{"ted", CategoryTransfers},
	{"doc", CategoryTransfers},
	{"transferencia", CategoryTransfers},
	{"transfer", CategoryTransfers},
	{"tarifa", CategoryFees},
	{"iof", CategoryFees},
	{"juros", CategoryFees},
}

// MapCategory resolves a provider category name, falling back to
// description keywords, then to "other". Pure function; safe to call
// from concurrent syncers.
func MapCategory(providerCategory *string, description string) string {
	if providerCategory != nil {
		if mapped, ok := categoryMapping[strings.ToLower(strings.TrimSpace(*providerCategory))]; ok {
			return mapped
		}
	}

	normalized := NormalizeDescription(description)
	for _, entry := range descriptionKeywords {
		if strings.Contains(normalized, entry.keyword) {
			return entry.category
		}
	}
	return CategoryOther
}

// MapType classifies a transaction as income, expense or transfer.
// Transfers are decided by category first; otherwise the sign of the
// amount wins, with the provider's DEBIT/CREDIT flag as a tiebreak for
// zero amounts.
func MapType(amount float64, category, providerType string) string {
	if category == CategoryTransfers {
		return TypeTransfer
	}
	switch {
	case amount < 0:
		return TypeExpense
	case amount > 0:
		return TypeIncome
	case providerType == "CREDIT":
		return TypeIncome
	default:
		return TypeExpense
	}
}
