package services

import (
	"strings"
	"testing"

	"monster-arena-system/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// dryRunDB builds SQL without a live database connection.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.Open("host=localhost user=arena dbname=arena"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	if err != nil {
		t.Fatalf("failed to open dry-run session: %v", err)
	}
	return db
}

// Postgres rejects FOR UPDATE combined with aggregate functions, so the
// uniqueness checks must lock the matching rows and count client-side.

func TestDuplicateChallengeCheckLocksRowsNotAggregates(t *testing.T) {
	db := dryRunDB(t)

	var rows []models.Challenge
	stmt := pendingChallengesBetween(db, "user-a", "user-b").Find(&rows).Statement

	sql := strings.ToLower(stmt.SQL.String())
	if !strings.Contains(sql, "for update") {
		t.Fatalf("duplicate check must lock the matching rows, got: %s", sql)
	}
	if strings.Contains(sql, "count(") {
		t.Fatalf("locking clause combined with an aggregate, got: %s", sql)
	}
}

func TestActiveSeasonCheckLocksRowsNotAggregates(t *testing.T) {
	db := dryRunDB(t)

	var rows []models.Season
	stmt := lockedActiveSeasons(db).Find(&rows).Statement

	sql := strings.ToLower(stmt.SQL.String())
	if !strings.Contains(sql, "for update") {
		t.Fatalf("active-season check must lock the matching rows, got: %s", sql)
	}
	if strings.Contains(sql, "count(") {
		t.Fatalf("locking clause combined with an aggregate, got: %s", sql)
	}
}
