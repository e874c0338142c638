package webhook

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	svix "github.com/svix/svix-webhooks/go"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-desk/internal/domain"
	"github.com/spec-kit/triage-desk/internal/webhook/mocks"
	apperrors "github.com/spec-kit/triage-desk/pkg/util"
)

var testSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

const createdBody = `{"type":"user.created","data":{"id":"u1","email_addresses":[{"email_address":"a@x.io"}],"first_name":"Ada","last_name":null,"public_metadata":{}}}`

func signedHeaders(t *testing.T, msgID string, body []byte) http.Header {
	t.Helper()
	wh, err := svix.NewWebhook(testSecret)
	require.NoError(t, err)
	now := time.Now()
	sig, err := wh.Sign(msgID, now, body)
	require.NoError(t, err)

	h := http.Header{}
	h.Set(HeaderID, msgID)
	h.Set(HeaderTimestamp, strconv.FormatInt(now.Unix(), 10))
	h.Set(HeaderSignature, sig)
	return h
}

type memoryDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memoryDeduper) Seen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[id], nil
}

func (d *memoryDeduper) Mark(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	d.seen[id] = true
	return nil
}

func codeOf(err error) string {
	if de := apperrors.ToDomainError(err); de != nil {
		return de.Code
	}
	return ""
}

func TestIngestorGates(t *testing.T) {
	ctx := context.Background()
	body := []byte(createdBody)

	t.Run("missing secret is a configuration error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		directory := mocks.NewMockDirectorySyncer(ctrl)
		in := NewIngestor("", directory, nil, zap.NewNop(), nil)

		err := in.HandleEvent(ctx, body, signedHeaders(t, "msg_1", body))
		assert.Equal(t, apperrors.CodeConfigurationError, codeOf(err))
		assert.Equal(t, http.StatusInternalServerError, apperrors.ToDomainError(err).HTTPStatus)
	})

	t.Run("missing headers are malformed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		directory := mocks.NewMockDirectorySyncer(ctrl)
		in := NewIngestor(testSecret, directory, nil, zap.NewNop(), nil)

		for _, header := range []string{HeaderID, HeaderTimestamp, HeaderSignature} {
			h := signedHeaders(t, "msg_1", body)
			h.Del(header)
			err := in.HandleEvent(ctx, body, h)
			assert.Equal(t, apperrors.CodeMalformedRequest, codeOf(err), header)
		}
	})

	t.Run("tampered body is rejected without dispatch", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		directory := mocks.NewMockDirectorySyncer(ctrl)
		directory.EXPECT().SyncFromWebhook(gomock.Any(), gomock.Any()).Times(0)
		in := NewIngestor(testSecret, directory, nil, zap.NewNop(), nil)

		headers := signedHeaders(t, "msg_1", body)
		tampered := []byte(`{"type":"user.created","data":{"id":"attacker"}}`)
		err := in.HandleEvent(ctx, tampered, headers)
		assert.Equal(t, apperrors.CodeVerificationFailed, codeOf(err))
		assert.Equal(t, http.StatusBadRequest, apperrors.ToDomainError(err).HTTPStatus)
	})

	t.Run("signature from another secret is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		directory := mocks.NewMockDirectorySyncer(ctrl)
		other := "whsec_" + base64.StdEncoding.EncodeToString([]byte("ffffffffffffffffffffffffffffffff"))
		in := NewIngestor(other, directory, nil, zap.NewNop(), nil)

		err := in.HandleEvent(ctx, body, signedHeaders(t, "msg_1", body))
		assert.Equal(t, apperrors.CodeVerificationFailed, codeOf(err))
	})

	t.Run("verified but undecodable payload is malformed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		directory := mocks.NewMockDirectorySyncer(ctrl)
		in := NewIngestor(testSecret, directory, nil, zap.NewNop(), nil)

		bad := []byte(`{"type":"user.created","data":"oops"}`)
		err := in.HandleEvent(ctx, bad, signedHeaders(t, "msg_1", bad))
		assert.Equal(t, apperrors.CodeMalformedRequest, codeOf(err))
	})
}

func TestIngestorDispatch(t *testing.T) {
	ctx := context.Background()
	body := []byte(createdBody)

	t.Run("valid delivery reaches the directory", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		directory := mocks.NewMockDirectorySyncer(ctrl)
		directory.EXPECT().SyncFromWebhook(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, event domain.WebhookEvent) error {
				assert.Equal(t, "msg_1", event.ID)
				assert.Equal(t, domain.WebhookUserCreated, event.Type)
				require.NotNil(t, event.User)
				assert.Equal(t, "u1", event.User.ID)
				assert.Equal(t, "a@x.io", event.User.PrimaryEmail())
				require.NotNil(t, event.User.FirstName)
				assert.Nil(t, event.User.LastName)
				return nil
			})
		in := NewIngestor(testSecret, directory, nil, zap.NewNop(), nil)

		require.NoError(t, in.HandleEvent(ctx, body, signedHeaders(t, "msg_1", body)))
	})

	t.Run("unknown kinds are acknowledged", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		directory := mocks.NewMockDirectorySyncer(ctrl)
		directory.EXPECT().SyncFromWebhook(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, event domain.WebhookEvent) error {
				assert.Equal(t, domain.WebhookEventType("session.created"), event.Type)
				assert.Nil(t, event.User)
				return nil
			})
		in := NewIngestor(testSecret, directory, nil, zap.NewNop(), nil)

		payload := []byte(`{"type":"session.created","data":{"id":"sess_1"}}`)
		require.NoError(t, in.HandleEvent(ctx, payload, signedHeaders(t, "msg_2", payload)))
	})

	t.Run("sync failure is internal and not marked", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		directory := mocks.NewMockDirectorySyncer(ctrl)
		directory.EXPECT().SyncFromWebhook(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
		dedupe := &memoryDeduper{}
		in := NewIngestor(testSecret, directory, dedupe, zap.NewNop(), nil)

		err := in.HandleEvent(ctx, body, signedHeaders(t, "msg_3", body))
		assert.Equal(t, apperrors.CodeInternalError, codeOf(err))
		seen, _ := dedupe.Seen(ctx, "msg_3")
		assert.False(t, seen)
	})

	t.Run("redelivered message is dispatched once", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		directory := mocks.NewMockDirectorySyncer(ctrl)
		directory.EXPECT().SyncFromWebhook(gomock.Any(), gomock.Any()).Return(nil).Times(1)
		in := NewIngestor(testSecret, directory, &memoryDeduper{}, zap.NewNop(), nil)

		headers := signedHeaders(t, "msg_4", body)
		require.NoError(t, in.HandleEvent(ctx, body, headers))
		require.NoError(t, in.HandleEvent(ctx, body, headers))
	})
}

func TestDecode(t *testing.T) {
	t.Run("deleted event", func(t *testing.T) {
		event, err := Decode([]byte(`{"type":"user.deleted","data":{"id":"u1","deleted":true,"object":"user"}}`), "m")
		require.NoError(t, err)
		require.NotNil(t, event.User)
		assert.True(t, event.User.Deleted)
		assert.Nil(t, event.User.PublicMetadata)
	})

	t.Run("metadata skills", func(t *testing.T) {
		event, err := Decode([]byte(`{"type":"user.updated","data":{"id":"u1","public_metadata":{"role":"moderator","skills":[]}}}`), "m")
		require.NoError(t, err)
		require.NotNil(t, event.User.PublicMetadata)
		assert.Equal(t, "moderator", *event.User.PublicMetadata.Role)
		assert.NotNil(t, event.User.PublicMetadata.Skills)
	})

	for name, body := range map[string]string{
		"not json":          `nope`,
		"missing type":      `{"data":{}}`,
		"user without data": `{"type":"user.updated"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(body), "m")
			assert.Error(t, err)
		})
	}
}
