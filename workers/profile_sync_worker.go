// workers/profile_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"monster-arena-system/models"
	"monster-arena-system/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirroredPlayerFromProfile matches the JSON the profile service exposes on
// its public sync endpoint.
type MirroredPlayerFromProfile struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Username   string    `json:"username"`
	Level      int       `json:"level"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// GetPlayerChangesResponse is the top-level structure of the sync response.
type GetPlayerChangesResponse struct {
	Users []MirroredPlayerFromProfile `json:"users"`
}

// ProfileSyncWorker mirrors player identities from the external profile
// service into local PlayerProfile rows. Authentication itself stays in the
// profile service; the arena only needs stable user ids and display names.
type ProfileSyncWorker struct {
	db           *gorm.DB
	logger       *zap.Logger
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewProfileSyncWorker(db *gorm.DB, logger *zap.Logger, profileServiceBaseURL, endpointPath, serviceToken string) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		db:           db,
		logger:       logger,
		interval:     1 * time.Minute,
		baseURL:      profileServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	w.logger.Info("starting profile sync worker")
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	// Initial backfill from the beginning of time.
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		w.logger.Warn("initial profile sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.getLastSyncTime()); err != nil {
				w.logger.Error("profile sync batch failed", zap.Error(err))
			}
		case <-ctx.Done():
			w.logger.Info("profile sync worker stopped")
			return
		}
	}
}

// getLastSyncTime finds the most recent UpdatedAt among local profiles.
func (w *ProfileSyncWorker) getLastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM player_profiles WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

// syncBatch fetches player changes since the given time and upserts them.
func (w *ProfileSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid profile service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)

	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create sync request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call profile service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("profile service returned %d: %s", resp.StatusCode, string(body))
	}

	var payload GetPlayerChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode profile sync response: %w", err)
	}
	if len(payload.Users) == 0 {
		return nil
	}

	for _, user := range payload.Users {
		profile := models.PlayerProfile{
			UserID:   user.ExternalID,
			Username: user.Username,
			Level:    user.Level,
		}
		// Identity fields only; balances and prestige are owned locally and
		// must never be overwritten by the mirror.
		err := w.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "level", "updated_at"}),
		}).Create(&profile).Error
		if err != nil {
			w.logger.Error("failed to upsert mirrored profile",
				zap.String("user_id", user.ExternalID), zap.Error(err))
		}
	}

	w.logger.Info("profile sync batch applied", zap.Int("count", len(payload.Users)))
	return nil
}
