package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/skillhub/backend/internal/models"
)

type CategoryService struct {
	db    *sql.DB
	cache *CacheService
}

func NewCategoryService(db *sql.DB, cache *CacheService) *CategoryService {
	return &CategoryService{db: db, cache: cache}
}

// GetAllCategories returns every category ordered for display.
func (s *CategoryService) GetAllCategories(ctx context.Context) ([]models.Category, error) {
	var cached []models.Category
	if found, err := s.cache.Get(ctx, CategoriesKey, &cached); err == nil && found {
		return cached, nil
	}

	categories, err := s.loadCategories(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, CategoriesKey, categories, TaxonomyTTL); err != nil {
		log.Printf("[CATEGORIES] Cache write failed: %v", err)
	}
	return categories, nil
}

// GetCategoryTree returns categories as a parent/child tree.
func (s *CategoryService) GetCategoryTree(ctx context.Context) ([]*models.CategoryNode, error) {
	var cached []*models.CategoryNode
	if found, err := s.cache.Get(ctx, CategoryTreeKey, &cached); err == nil && found {
		return cached, nil
	}

	categories, err := s.loadCategories(ctx)
	if err != nil {
		return nil, err
	}

	tree := buildCategoryTree(categories)
	if err := s.cache.Set(ctx, CategoryTreeKey, tree, TaxonomyTTL); err != nil {
		log.Printf("[CATEGORIES] Tree cache write failed: %v", err)
	}
	return tree, nil
}

func (s *CategoryService) loadCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, slug, COALESCE(description, ''), COALESCE(icon, ''), COALESCE(parent_id::text, ''), sort_order
		 FROM categories ORDER BY sort_order ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Icon, &c.ParentID, &c.SortOrder); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func buildCategoryTree(categories []models.Category) []*models.CategoryNode {
	nodes := make(map[string]*models.CategoryNode, len(categories))
	for _, c := range categories {
		nodes[c.ID] = &models.CategoryNode{Category: c, Children: []*models.CategoryNode{}}
	}

	roots := []*models.CategoryNode{}
	for _, c := range categories {
		node := nodes[c.ID]
		if parent, ok := nodes[c.ParentID]; ok && c.ParentID != c.ID {
			parent.Children = append(parent.Children, node)
		} else {
			roots = append(roots, node)
		}
	}
	return roots
}

// ListCategories handles the flat category listing
// @Summary List categories
// @Tags categories
// @Produce json
// @Success 200 {array} models.Category
// @Router /categories [get]
func (s *CategoryService) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.GetAllCategories(r.Context())
	if err != nil {
		log.Printf("[CATEGORIES] Listing failed: %v", err)
		SendErrorResponse(w, "Failed to list categories", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(categories)
}

// CategoryTree handles the hierarchical category listing
// @Summary Get category tree
// @Tags categories
// @Produce json
// @Success 200 {array} models.CategoryNode
// @Router /categories/tree [get]
func (s *CategoryService) CategoryTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.GetCategoryTree(r.Context())
	if err != nil {
		log.Printf("[CATEGORIES] Tree build failed: %v", err)
		SendErrorResponse(w, "Failed to build category tree", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tree)
}
