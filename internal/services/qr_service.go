package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
)

// QRService issues short-lived share codes for skill pages. The encoded
// payload is parked in Redis so a scanned code can be resolved and
// expired server-side.
type QRService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewQRService(db *sql.DB, redisClient *redis.Client) *QRService {
	return &QRService{db: db, redis: redisClient}
}

// GenerateShareCode builds a share token and its QR image for a skill.
func (s *QRService) GenerateShareCode(ctx context.Context, skillID string) (string, string, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM skills WHERE id = $1 AND is_active = TRUE)`, skillID).Scan(&exists)
	if err != nil {
		return "", "", err
	}
	if !exists {
		return "", "", ErrSkillNotFound
	}

	payload := map[string]any{
		"skillId":   skillID,
		"timestamp": time.Now().Unix(),
		"nonce":     generateNonce(),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	shareCode := base64.URLEncoding.EncodeToString(jsonData)

	if s.redis != nil {
		key := fmt.Sprintf("share:%s", shareCode)
		if err := s.redis.Set(ctx, key, jsonData, 5*time.Minute).Err(); err != nil {
			return "", "", err
		}
	}

	qr, err := qrcode.New(shareCode, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	return shareCode, base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ResolveShareCode looks up a previously issued code. Codes are single
// use; resolution deletes the stored payload.
func (s *QRService) ResolveShareCode(ctx context.Context, shareCode string) (string, error) {
	if s.redis == nil {
		return "", fmt.Errorf("share codes unavailable without Redis")
	}

	key := fmt.Sprintf("share:%s", shareCode)
	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return "", fmt.Errorf("invalid or expired share code")
	}
	if err != nil {
		return "", err
	}

	var payload struct {
		SkillID string `json:"skillId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", err
	}

	s.redis.Del(ctx, key)
	return payload.SkillID, nil
}

// SkillShareQR handles share QR generation for a skill
// @Summary Get a share QR code for a skill
// @Tags skills
// @Produce json
// @Param id path string true "Skill ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /skills/{id}/qr [get]
func (s *QRService) SkillShareQR(w http.ResponseWriter, r *http.Request) {
	skillID := chi.URLParam(r, "id")

	shareCode, qrImage, err := s.GenerateShareCode(r.Context(), skillID)
	if errors.Is(err, ErrSkillNotFound) {
		SendErrorResponse(w, "Skill not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[QR] Share code generation failed for %s: %v", skillID, err)
		SendErrorResponse(w, "Failed to generate share code", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"shareCode": shareCode,
		"qrImage":   qrImage,
	})
}

func generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
