package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestQRService_GenerateShareCode(t *testing.T) {
	t.Run("issues a decodable code and QR image", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewQRService(db, nil)

		dbMock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM skills WHERE id = \\$1 AND is_active = TRUE\\)").
			WithArgs("s1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		shareCode, qrImage, err := service.GenerateShareCode(context.Background(), "s1")
		assert.NoError(t, err)
		assert.NotEmpty(t, qrImage)

		decoded, err := base64.URLEncoding.DecodeString(shareCode)
		assert.NoError(t, err)

		var payload struct {
			SkillID   string `json:"skillId"`
			Timestamp int64  `json:"timestamp"`
			Nonce     string `json:"nonce"`
		}
		assert.NoError(t, json.Unmarshal(decoded, &payload))
		assert.Equal(t, "s1", payload.SkillID)
		assert.NotZero(t, payload.Timestamp)
		assert.NotEmpty(t, payload.Nonce)
	})

	t.Run("unknown skill", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewQRService(db, nil)

		dbMock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM skills WHERE id = \\$1 AND is_active = TRUE\\)").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, _, err = service.GenerateShareCode(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrSkillNotFound)
	})
}

func TestQRService_ResolveShareCode(t *testing.T) {
	t.Run("resolution is single use", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewQRService(nil, redisClient)

		payload, _ := json.Marshal(map[string]any{"skillId": "s1"})
		redisMock.ExpectGet("share:abc").SetVal(string(payload))
		redisMock.ExpectDel("share:abc").SetVal(1)

		skillID, err := service.ResolveShareCode(context.Background(), "abc")
		assert.NoError(t, err)
		assert.Equal(t, "s1", skillID)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("expired code", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewQRService(nil, redisClient)

		redisMock.ExpectGet("share:gone").RedisNil()

		_, err := service.ResolveShareCode(context.Background(), "gone")
		assert.Error(t, err)
	})

	t.Run("unavailable without redis", func(t *testing.T) {
		service := NewQRService(nil, nil)

		_, err := service.ResolveShareCode(context.Background(), "abc")
		assert.Error(t, err)
	})
}
