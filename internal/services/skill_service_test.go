package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/skillhub/backend/internal/models"
)

func skillRows(skills ...models.Skill) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "title", "description", "thumbnail", "author", "author_url",
		"source_url", "repository_url", "difficulty", "view_count", "favorite_count",
		"average_rating", "is_active", "created_at", "updated_at",
	})
	for _, sk := range skills {
		rows.AddRow(sk.ID, sk.Title, sk.Description, sk.Thumbnail, sk.Author, sk.AuthorURL,
			sk.SourceURL, sk.RepositoryURL, sk.Difficulty, sk.ViewCount, sk.FavoriteCount,
			sk.AverageRating, sk.IsActive, sk.CreatedAt, sk.UpdatedAt)
	}
	return rows
}

func TestSkillService_GetSkills(t *testing.T) {
	now := time.Now()
	sample := models.Skill{
		ID:          "s1",
		Title:       "Effective Goroutines",
		Description: "Structured concurrency patterns",
		Author:      "gopher",
		SourceURL:   "https://example.com/goroutines",
		Difficulty:  "intermediate",
		ViewCount:   12,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	t.Run("unfiltered listing with pagination", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewSkillService(db, NewCacheService(nil))

		dbMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM skills WHERE is_active = TRUE").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(41))
		dbMock.ExpectQuery("FROM skills WHERE is_active = TRUE ORDER BY view_count DESC LIMIT \\$1 OFFSET \\$2").
			WithArgs(20, 0).
			WillReturnRows(skillRows(sample))

		result, err := service.GetSkills(context.Background(), SkillFilters{})
		assert.NoError(t, err)
		assert.Equal(t, int64(41), result.Total)
		assert.Equal(t, 1, result.Page)
		assert.Equal(t, 3, result.TotalPages)
		assert.Len(t, result.Skills, 1)
		assert.Equal(t, "Effective Goroutines", result.Skills[0].Title)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("category and difficulty filters parameterize the query", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewSkillService(db, NewCacheService(nil))

		dbMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM skills").
			WithArgs("programming", "intermediate").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		dbMock.ExpectQuery("FROM skills WHERE is_active = TRUE AND").
			WithArgs("programming", "intermediate", 20, 0).
			WillReturnRows(skillRows(sample))

		result, err := service.GetSkills(context.Background(), SkillFilters{
			Category:   "programming",
			Difficulty: "intermediate",
		})
		assert.NoError(t, err)
		assert.Len(t, result.Skills, 1)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("repeated listing is served from cache", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		service := NewSkillService(db, NewCacheService(redisClient))

		cached, _ := json.Marshal(PaginatedSkills{
			Skills: []models.Skill{sample},
			Total:  1, Page: 1, TotalPages: 1,
		})
		cacheKey := SkillListKey(hashFilters(SkillFilters{Page: 1, Limit: 20}))
		redisMock.ExpectGet(cacheKey).SetVal(string(cached))

		result, err := service.GetSkills(context.Background(), SkillFilters{})
		assert.NoError(t, err)
		assert.Equal(t, int64(1), result.Total)
		// No store expectations were registered; a store call would fail here.
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestSkillService_GetSkill(t *testing.T) {
	now := time.Now()

	t.Run("detail read bumps the view counter", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewSkillService(db, NewCacheService(nil))

		dbMock.ExpectQuery("FROM skills WHERE id = \\$1 AND is_active = TRUE").
			WithArgs("s1").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "title", "description", "content", "thumbnail", "author", "author_url",
				"source_url", "repository_url", "difficulty", "view_count", "favorite_count",
				"average_rating", "is_active", "created_at", "updated_at",
			}).AddRow("s1", "Effective Goroutines", "Structured concurrency patterns",
				"# Effective Goroutines\n...", "", "gopher", "",
				"https://example.com/goroutines", "", "intermediate", 12, 3,
				4.5, true, now, now))
		dbMock.ExpectExec("UPDATE skills SET view_count = view_count \\+ 1 WHERE id = \\$1").
			WithArgs("s1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		skill, err := service.GetSkill(context.Background(), "s1")
		assert.NoError(t, err)
		assert.Equal(t, "Effective Goroutines", skill.Title)
		assert.Equal(t, "# Effective Goroutines\n...", skill.Content)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("cached detail skips the row read but still counts the view", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		service := NewSkillService(db, NewCacheService(redisClient))

		cached, _ := json.Marshal(models.Skill{ID: "s1", Title: "Effective Goroutines", IsActive: true})
		redisMock.ExpectGet(SkillKey("s1")).SetVal(string(cached))
		dbMock.ExpectExec("UPDATE skills SET view_count = view_count \\+ 1 WHERE id = \\$1").
			WithArgs("s1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		skill, err := service.GetSkill(context.Background(), "s1")
		assert.NoError(t, err)
		assert.Equal(t, "Effective Goroutines", skill.Title)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("unknown or inactive skill", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewSkillService(db, NewCacheService(nil))

		dbMock.ExpectQuery("FROM skills WHERE id = \\$1 AND is_active = TRUE").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err = service.GetSkill(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrSkillNotFound)
	})
}

func TestHashFilters(t *testing.T) {
	a := hashFilters(SkillFilters{Category: "programming", Page: 1, Limit: 20})
	b := hashFilters(SkillFilters{Category: "programming", Page: 1, Limit: 20})
	c := hashFilters(SkillFilters{Category: "design", Page: 1, Limit: 20})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}
