package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/skillhub/backend/internal/models"
)

type TagService struct {
	db    *sql.DB
	cache *CacheService
}

func NewTagService(db *sql.DB, cache *CacheService) *TagService {
	return &TagService{db: db, cache: cache}
}

// GetAllTags returns every tag ordered by usage count.
func (s *TagService) GetAllTags(ctx context.Context) ([]models.Tag, error) {
	var cached []models.Tag
	if found, err := s.cache.Get(ctx, TagsKey, &cached); err == nil && found {
		return cached, nil
	}

	tags, err := s.loadTags(ctx, 0)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, TagsKey, tags, TaxonomyTTL); err != nil {
		log.Printf("[TAGS] Cache write failed: %v", err)
	}
	return tags, nil
}

// GetPopularTags returns the most used tags. The cache holds the full
// popular set; limit is applied after the cache read.
func (s *TagService) GetPopularTags(ctx context.Context, limit int) ([]models.Tag, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var cached []models.Tag
	if found, err := s.cache.Get(ctx, PopularTagsKey, &cached); err == nil && found {
		if len(cached) > limit {
			cached = cached[:limit]
		}
		return cached, nil
	}

	tags, err := s.loadTags(ctx, 100)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, PopularTagsKey, tags, TaxonomyTTL); err != nil {
		log.Printf("[TAGS] Popular cache write failed: %v", err)
	}
	if len(tags) > limit {
		tags = tags[:limit]
	}
	return tags, nil
}

func (s *TagService) loadTags(ctx context.Context, limit int) ([]models.Tag, error) {
	query := `SELECT id, name, slug, count FROM tags ORDER BY count DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Count); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// ListTags handles the tag listing endpoint
// @Summary List tags
// @Tags tags
// @Produce json
// @Success 200 {array} models.Tag
// @Router /tags [get]
func (s *TagService) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.GetAllTags(r.Context())
	if err != nil {
		log.Printf("[TAGS] Listing failed: %v", err)
		SendErrorResponse(w, "Failed to list tags", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tags)
}

// PopularTags handles the popular tag listing endpoint
// @Summary List popular tags
// @Tags tags
// @Produce json
// @Param limit query int false "Max tags to return (default 20)"
// @Success 200 {array} models.Tag
// @Router /tags/popular [get]
func (s *TagService) PopularTags(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	tags, err := s.GetPopularTags(r.Context(), limit)
	if err != nil {
		log.Printf("[TAGS] Popular listing failed: %v", err)
		SendErrorResponse(w, "Failed to list popular tags", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tags)
}
