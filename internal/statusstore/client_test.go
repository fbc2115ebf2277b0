package statusstore_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harupipipipi/mcmultidrive/internal/statusstore"
	"github.com/harupipipipi/mcmultidrive/internal/statusstore/storetest"
	"github.com/harupipipipi/mcmultidrive/pkg/errclass"
	"github.com/harupipipipi/mcmultidrive/pkg/logging"
	"github.com/harupipipipi/mcmultidrive/pkg/model"
)

func newClient(t *testing.T) (*statusstore.Client, *storetest.Server) {
	t.Helper()
	srv := storetest.NewServer()
	t.Cleanup(srv.Close)
	return statusstore.NewClient(srv.URL, time.Second, statusstore.WithLogger(logging.Discard())), srv
}

func TestRegisterListRead(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, "Test"))
	require.NoError(t, c.Register(ctx, "Other"))

	worlds, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, worlds, 2)
	assert.Equal(t, "Other", worlds[0].Name)

	w, err := c.Read(ctx, "Test")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOffline, w.Status)
	assert.Equal(t, "Test", w.Name)
}

func TestRegisterDuplicateRejected(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, "Test"))
	err := c.Register(ctx, "Test")
	require.ErrorIs(t, err, errclass.ErrStoreRejected)
	assert.Contains(t, err.Error(), "already exists")
}

func TestAcquire_ConflictReportsCurrentHolder(t *testing.T) {
	c, srv := newClient(t)
	ctx := context.Background()
	srv.Seed(model.World{Name: "Test", Status: model.StatusOffline})

	res, err := c.Acquire(ctx, "Test", "Alice")
	require.NoError(t, err)
	assert.True(t, res.Acquired)

	w, err := c.Read(ctx, "Test")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnline, w.Status)
	assert.Equal(t, "Alice", w.Holder)
	assert.Equal(t, model.AddressPreparing, w.Address)
	assert.NotEmpty(t, w.LockTimestamp)

	res, err = c.Acquire(ctx, "Test", "Bob")
	require.NoError(t, err, "a conflict is an outcome, not an error")
	assert.False(t, res.Acquired)
	assert.Equal(t, "Alice", res.Holder)

	row, _ := srv.World("Test")
	assert.Equal(t, "Alice", row.Holder, "second acquire must not take the lock")
}

func TestAcquire_UnknownWorldIsRejected(t *testing.T) {
	c, _ := newClient(t)
	_, err := c.Acquire(context.Background(), "Missing", "Bob")
	assert.ErrorIs(t, err, errclass.ErrStoreRejected)
}

func TestPublishAddressAndRelease(t *testing.T) {
	c, srv := newClient(t)
	ctx := context.Background()
	srv.Seed(model.World{Name: "Test", Status: model.StatusOffline})

	_, err := c.Acquire(ctx, "Test", "Bob")
	require.NoError(t, err)
	require.NoError(t, c.PublishAddress(ctx, "Test", "foo.e4mc.link"))

	w, err := c.Read(ctx, "Test")
	require.NoError(t, err)
	assert.True(t, w.HasAddress())

	require.NoError(t, c.Release(ctx, "Test"))
	w, err = c.Read(ctx, "Test")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOffline, w.Status)
	assert.Empty(t, w.Holder)

	assert.ErrorIs(t, c.PublishAddress(ctx, "Test", "late.e4mc.link"), errclass.ErrStoreRejected)
}

func TestRemove(t *testing.T) {
	c, srv := newClient(t)
	ctx := context.Background()
	srv.Seed(model.World{Name: "Test", Status: model.StatusOffline})

	require.NoError(t, c.Remove(ctx, "Test"))
	_, ok := srv.World("Test")
	assert.False(t, ok)

	_, err := c.Read(ctx, "Test")
	assert.ErrorIs(t, err, errclass.ErrStoreRejected)
}

func TestTransportErrors(t *testing.T) {
	c, srv := newClient(t)
	srv.SetFail("get_status", true)

	_, err := c.Read(context.Background(), "Test")
	require.ErrorIs(t, err, errclass.ErrTransport)
	assert.Contains(t, err.Error(), "http 500")
	assert.Equal(t, []string{"get_status"}, srv.Requests(), "no retry inside the client")
}

func TestTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := statusstore.NewClient(srv.URL, 50*time.Millisecond, statusstore.WithLogger(logging.Discard()))
	start := time.Now()
	_, err := c.List(context.Background())
	require.ErrorIs(t, err, errclass.ErrTransport)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>sign in</html>"))
	}))
	defer srv.Close()

	c := statusstore.NewClient(srv.URL, time.Second, statusstore.WithLogger(logging.Discard()))
	_, err := c.List(context.Background())
	require.ErrorIs(t, err, errclass.ErrTransport)
	assert.Contains(t, err.Error(), "malformed")
}

func TestUnreachable(t *testing.T) {
	c := statusstore.NewClient("http://127.0.0.1:1", time.Second, statusstore.WithLogger(logging.Discard()))
	assert.ErrorIs(t, c.Ping(context.Background()), errclass.ErrTransport)
}
