package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/flowride/flow/internal/errors"
	"github.com/flowride/flow/pkg/utils"
)

// Idempotency replays cached responses for repeated POSTs carrying the
// same Idempotency-Key. Ride creation places a card hold, so a client
// retrying over flaky mobile data must not hold the rider twice.
const (
	IdempotencyHeader = "Idempotency-Key"

	idempotencyTTL    = 24 * time.Hour
	idempotencyPrefix = "idempotency:"
	inflightTTL       = 30 * time.Second
)

type IdempotencyMiddleware struct {
	redis *redis.Client
}

func NewIdempotencyMiddleware(redisClient *redis.Client) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{redis: redisClient}
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// captureWriter buffers the response so a 2xx can be stored for replay.
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	cw.body.Write(b)
	return cw.ResponseWriter.Write(b)
}

func (m *IdempotencyMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyHeader)
		if r.Method != http.MethodPost || key == "" {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			utils.BadRequest(w, "failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		sum := sha256.Sum256(body)
		requestHash := hex.EncodeToString(sum[:])
		cacheKey := idempotencyPrefix + key
		ctx := r.Context()

		if stored, err := m.load(ctx, cacheKey); err == nil {
			if stored.RequestHash != requestHash {
				utils.Error(w, apperrors.NewAPIError("idempotency_conflict",
					"idempotency key already used with a different request body", http.StatusConflict))
				return
			}
			w.Header().Set("Content-Type", stored.ContentType)
			w.WriteHeader(stored.Status)
			w.Write(stored.Body)
			return
		}

		// One request per key at a time. A concurrent duplicate gets a
		// conflict instead of racing the first one.
		lockKey := cacheKey + ":inflight"
		locked, err := m.redis.SetNX(ctx, lockKey, "1", inflightTTL).Result()
		if err != nil || !locked {
			utils.Error(w, apperrors.NewAPIError("request_in_progress",
				"a request with this idempotency key is already being processed", http.StatusConflict))
			return
		}
		defer m.redis.Del(ctx, lockKey)

		cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(cw, r)

		if cw.status >= 200 && cw.status < 300 {
			data, _ := json.Marshal(storedResponse{
				Status:      cw.status,
				ContentType: cw.Header().Get("Content-Type"),
				Body:        cw.body.Bytes(),
				RequestHash: requestHash,
			})
			m.redis.Set(ctx, cacheKey, data, idempotencyTTL)
		}
	})
}

func (m *IdempotencyMiddleware) load(ctx context.Context, key string) (*storedResponse, error) {
	data, err := m.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var stored storedResponse
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}
