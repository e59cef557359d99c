package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"agrego/internal/domain/credential"
	"agrego/internal/domain/openfinance"
	"agrego/internal/shared/logger"
)

// UserSyncJob implements the Job interface for one user's full
// provider sync: every connection, every entity.
type UserSyncJob struct {
	userID      int64
	syncService *openfinance.Service
}

// NewUserSyncJob creates a full sync job for a user
func NewUserSyncJob(userID int64, syncService *openfinance.Service) *UserSyncJob {
	return &UserSyncJob{
		userID:      userID,
		syncService: syncService,
	}
}

// Execute runs the full sync for the user
func (j *UserSyncJob) Execute(ctx context.Context) error {
	result, err := j.syncService.SyncUser(ctx, j.userID)
	if err != nil {
		if errors.Is(err, openfinance.ErrNoCredential) {
			// Credential deleted between listing and execution
			return nil
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	if len(result.Errors) > 0 {
		logger.Get().Warnw("scheduled sync completed with errors",
			"user_id", j.userID, "created", result.Created, "updated", result.Updated,
			"errors", len(result.Errors))
		// Surface the error so the job is counted as failed
		return fmt.Errorf("sync completed with %d errors", len(result.Errors))
	}

	logger.Get().Infow("scheduled sync completed",
		"user_id", j.userID, "found", result.Found, "created", result.Created,
		"updated", result.Updated, "skipped", result.Skipped)
	return nil
}

// UserID returns the user ID associated with this job
func (j *UserSyncJob) UserID() string {
	return strconv.FormatInt(j.userID, 10)
}

// Description returns a human-readable description of the job
func (j *UserSyncJob) Description() string {
	return fmt.Sprintf("full provider sync for user %d", j.userID)
}

// SyncJobProvider builds the nightly job batch: one full sync job per
// user holding a stored credential.
func SyncJobProvider(creds credential.Repository, syncService *openfinance.Service) func(context.Context) ([]Job, error) {
	return func(ctx context.Context) ([]Job, error) {
		userIDs, err := creds.ListUserIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list users with credentials: %w", err)
		}

		jobs := make([]Job, 0, len(userIDs))
		for _, userID := range userIDs {
			jobs = append(jobs, NewUserSyncJob(userID, syncService))
		}
		return jobs, nil
	}
}
