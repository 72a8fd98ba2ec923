package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"

	"github.com/skillhub/backend/internal/models"
)

var ErrSkillNotFound = errors.New("skill not found")

// SkillFilters narrows a catalog listing.
type SkillFilters struct {
	Category   string   `json:"category,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Search     string   `json:"search,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
	Sort       string   `json:"sort,omitempty"`
	Page       int      `json:"page,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// PaginatedSkills is a catalog listing page.
type PaginatedSkills struct {
	Skills     []models.Skill `json:"skills"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
}

type SkillService struct {
	db    *sql.DB
	cache *CacheService
}

func NewSkillService(db *sql.DB, cache *CacheService) *SkillService {
	return &SkillService{db: db, cache: cache}
}

// GetSkills returns active skills matching the filters, cached per
// filter combination.
func (s *SkillService) GetSkills(ctx context.Context, filters SkillFilters) (*PaginatedSkills, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}

	cacheKey := SkillListKey(hashFilters(filters))
	var cached PaginatedSkills
	if found, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && found {
		return &cached, nil
	}

	where := []string{"is_active = TRUE"}
	args := []any{}

	if filters.Category != "" {
		args = append(args, filters.Category)
		where = append(where, fmt.Sprintf(
			`id IN (SELECT sc.skill_id FROM skill_categories sc JOIN categories c ON c.id = sc.category_id WHERE c.slug = $%d)`,
			len(args)))
	}
	if len(filters.Tags) > 0 {
		args = append(args, pq.Array(filters.Tags))
		where = append(where, fmt.Sprintf(
			`id IN (SELECT st.skill_id FROM skill_tags st JOIN tags t ON t.id = st.tag_id WHERE t.slug = ANY($%d))`,
			len(args)))
	}
	if filters.Difficulty != "" {
		args = append(args, filters.Difficulty)
		where = append(where, fmt.Sprintf("difficulty = $%d", len(args)))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where = append(where, fmt.Sprintf(
			"(title ILIKE $%d OR description ILIKE $%d OR author ILIKE $%d)",
			len(args), len(args), len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM skills WHERE " + whereClause
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, err
	}

	orderBy := "view_count DESC"
	switch filters.Sort {
	case "newest":
		orderBy = "created_at DESC"
	case "rating":
		orderBy = "average_rating DESC"
	}

	offset := (filters.Page - 1) * filters.Limit
	args = append(args, filters.Limit, offset)
	listQuery := fmt.Sprintf(
		`SELECT id, title, description, COALESCE(thumbnail, ''), author, COALESCE(author_url, ''),
			source_url, repository_url, difficulty, view_count, favorite_count, average_rating,
			is_active, created_at, updated_at
		 FROM skills WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		whereClause, orderBy, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	skills := []models.Skill{}
	for rows.Next() {
		var sk models.Skill
		if err := rows.Scan(&sk.ID, &sk.Title, &sk.Description, &sk.Thumbnail, &sk.Author, &sk.AuthorURL,
			&sk.SourceURL, &sk.RepositoryURL, &sk.Difficulty, &sk.ViewCount, &sk.FavoriteCount,
			&sk.AverageRating, &sk.IsActive, &sk.CreatedAt, &sk.UpdatedAt); err != nil {
			return nil, err
		}
		skills = append(skills, sk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &PaginatedSkills{
		Skills:     skills,
		Total:      total,
		Page:       filters.Page,
		TotalPages: int((total + int64(filters.Limit) - 1) / int64(filters.Limit)),
	}

	if err := s.cache.Set(ctx, cacheKey, result, SkillListTTL); err != nil {
		log.Printf("[SKILLS] List cache write failed: %v", err)
	}
	return result, nil
}

// GetSkill returns one skill with full content, cached by ID. The view
// counter is bumped in the store on every call; the cached copy may lag
// it until the entry expires.
func (s *SkillService) GetSkill(ctx context.Context, skillID string) (*models.Skill, error) {
	cacheKey := SkillKey(skillID)
	var cached models.Skill
	if found, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && found {
		s.bumpViewCount(ctx, skillID)
		return &cached, nil
	}

	var sk models.Skill
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, content, COALESCE(thumbnail, ''), author, COALESCE(author_url, ''),
			source_url, repository_url, difficulty, view_count, favorite_count, average_rating,
			is_active, created_at, updated_at
		 FROM skills WHERE id = $1 AND is_active = TRUE`, skillID).
		Scan(&sk.ID, &sk.Title, &sk.Description, &sk.Content, &sk.Thumbnail, &sk.Author, &sk.AuthorURL,
			&sk.SourceURL, &sk.RepositoryURL, &sk.Difficulty, &sk.ViewCount, &sk.FavoriteCount,
			&sk.AverageRating, &sk.IsActive, &sk.CreatedAt, &sk.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSkillNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cacheKey, sk, SkillDetailTTL); err != nil {
		log.Printf("[SKILLS] Detail cache write failed for %s: %v", skillID, err)
	}
	s.bumpViewCount(ctx, skillID)
	return &sk, nil
}

func (s *SkillService) bumpViewCount(ctx context.Context, skillID string) {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE skills SET view_count = view_count + 1 WHERE id = $1`, skillID); err != nil {
		log.Printf("[SKILLS] View count update failed for %s: %v", skillID, err)
	}
}

// ListSkills handles the catalog listing endpoint
// @Summary List skills
// @Tags skills
// @Produce json
// @Param category query string false "Category slug"
// @Param tags query string false "Comma-separated tag slugs"
// @Param search query string false "Search in title, description, author"
// @Param difficulty query string false "beginner, intermediate or advanced"
// @Param sort query string false "popular (default), newest or rating"
// @Param page query int false "Page number"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} PaginatedSkills
// @Router /skills [get]
func (s *SkillService) ListSkills(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := SkillFilters{
		Category:   q.Get("category"),
		Search:     q.Get("search"),
		Difficulty: q.Get("difficulty"),
		Sort:       q.Get("sort"),
	}
	if tags := q.Get("tags"); tags != "" {
		filters.Tags = strings.Split(tags, ",")
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		filters.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		filters.Limit = v
	}

	result, err := s.GetSkills(r.Context(), filters)
	if err != nil {
		log.Printf("[SKILLS] Listing failed: %v", err)
		SendErrorResponse(w, "Failed to list skills", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetSkillDetail handles the skill detail endpoint
// @Summary Get skill detail
// @Tags skills
// @Produce json
// @Param id path string true "Skill ID"
// @Success 200 {object} models.Skill
// @Failure 404 {object} ErrorResponse
// @Router /skills/{id} [get]
func (s *SkillService) GetSkillDetail(w http.ResponseWriter, r *http.Request) {
	skillID := chi.URLParam(r, "id")

	skill, err := s.GetSkill(r.Context(), skillID)
	if errors.Is(err, ErrSkillNotFound) {
		SendErrorResponse(w, "Skill not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[SKILLS] Detail lookup failed for %s: %v", skillID, err)
		SendErrorResponse(w, "Failed to load skill", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(skill)
}

func hashFilters(filters SkillFilters) string {
	data, _ := json.Marshal(filters)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
