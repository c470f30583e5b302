package elements_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/elements"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_SettlesOnce(t *testing.T) {
	f, settle := elements.Pending()
	assert.False(t, f.Settled())

	settle(domain.Elements{"App": 1}, nil)
	settle(nil, errors.New("late"))

	got, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Elements{"App": 1}, got)
	assert.True(t, f.Settled())
}

func TestFuture_WaitHonorsContext(t *testing.T) {
	f, _ := elements.Pending()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFuture_RejectionIsReproduced(t *testing.T) {
	boom := errors.New("boom")
	f := elements.Go(context.Background(), func(context.Context) (domain.Elements, error) {
		return nil, boom
	})

	for i := 0; i < 2; i++ {
		_, err := f.Wait(context.Background())
		assert.ErrorIs(t, err, boom)
	}
}
