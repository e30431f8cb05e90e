// utils/archive.go
package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"monster-arena-system/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gorm.io/gorm"
)

var archiveClient *s3.Client
var archiveBucket string

// InitArchive wires the object-storage client used for closed-season exports.
// Archiving is optional: with no bucket configured, exports become no-ops.
func InitArchive() error {
	accountID := os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	accessKeySecret := os.Getenv("R2_ACCESS_KEY_SECRET")
	archiveBucket = os.Getenv("R2_BUCKET_NAME")
	if archiveBucket == "" {
		return nil
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
		config.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
				}, nil
			}),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to load archive storage config: %w", err)
	}

	archiveClient = s3.NewFromConfig(cfg)
	return nil
}

// ArchiveSeason uploads the frozen standings of a closed season as JSON.
// Called after the close transaction committed; failures here never undo the
// close, the caller just logs them.
func ArchiveSeason(ctx context.Context, db *gorm.DB, season *models.Season) error {
	if archiveClient == nil || archiveBucket == "" {
		return nil
	}

	var standings []models.SeasonHistory
	if err := db.Where("season_id = ?", season.ID).Order("placement ASC").Find(&standings).Error; err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"season":    season,
		"standings": standings,
	})
	if err != nil {
		return err
	}

	key := fmt.Sprintf("seasons/%s.json", season.Slug)
	_, err = archiveClient.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(archiveBucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	return err
}
