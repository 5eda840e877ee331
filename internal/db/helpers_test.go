package db

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agora-community/agora/internal/models"
)

var testDBSeq atomic.Int64

// newTestDB opens a private in-memory SQLite database with the full schema
func newTestDB(t *testing.T) *Repository {
	t.Helper()

	dsn := fmt.Sprintf("file:agora_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := gdb.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewRepository(gdb)
}

func mustCreate(t *testing.T, repo *Repository, values ...interface{}) {
	t.Helper()
	for _, v := range values {
		if err := repo.db.Create(v).Error; err != nil {
			t.Fatalf("failed to seed %T: %v", v, err)
		}
	}
}

func seedUser(t *testing.T, repo *Repository, id string) *models.User {
	t.Helper()
	u := &models.User{ID: id, Name: "user " + id, Role: models.RoleUser, CanPost: true, CreatedAt: time.Now().UTC()}
	mustCreate(t, repo, u)
	return u
}

func seedPost(t *testing.T, repo *Repository, id, authorID string, status models.ModerationStatus, created time.Time) *models.Post {
	t.Helper()
	p := &models.Post{
		ID: id, AuthorID: authorID, Title: "title " + id, Body: "body " + id, Tags: []string{"t"},
		ModerationStatus: status, CreatedAt: created, UpdatedAt: created, EditedAt: created,
	}
	mustCreate(t, repo, p)
	return p
}

func seedComment(t *testing.T, repo *Repository, id, postID, authorID string, status models.ModerationStatus, created time.Time) *models.Comment {
	t.Helper()
	c := &models.Comment{
		ID: id, PostID: postID, AuthorID: authorID, Body: "comment " + id,
		ModerationStatus: status, CreatedAt: created, UpdatedAt: created,
	}
	mustCreate(t, repo, c)
	return c
}
