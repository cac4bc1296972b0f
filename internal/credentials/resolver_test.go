package credentials_test

import (
	"context"
	"testing"
	"time"

	"github.com/docuflow/enginecore/internal/credentials"
	"github.com/docuflow/enginecore/internal/domain/credential"
	"github.com/docuflow/enginecore/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

var testMasterKey = []byte("01234567890123456789012345678901")

func TestResolver_NarrowestScopeWins(t *testing.T) {
	st := memory.New().Stores()
	r := credentials.New(st.Credentials, testMasterKey, time.Minute, time.Minute)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, "api_key", "system-value", credential.ScopeSystem, ""))
	require.NoError(t, r.Put(ctx, "api_key", "tenant-value", credential.ScopeTenant, "tenant-1"))

	val, err := r.Resolve(ctx, "api_key", "", "", "tenant-1")
	require.NoError(t, err)
	require.Equal(t, "tenant-value", val)

	val, err = r.Resolve(ctx, "api_key", "", "", "tenant-other")
	require.NoError(t, err)
	require.Equal(t, "system-value", val)
}

func TestResolver_ProcessorBeatsCampaignBeatsTenantBeatsSystem(t *testing.T) {
	st := memory.New().Stores()
	r := credentials.New(st.Credentials, testMasterKey, time.Minute, time.Minute)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, "k", "system", credential.ScopeSystem, ""))
	require.NoError(t, r.Put(ctx, "k", "tenant", credential.ScopeTenant, "t1"))
	require.NoError(t, r.Put(ctx, "k", "campaign", credential.ScopeCampaign, "c1"))
	require.NoError(t, r.Put(ctx, "k", "processor", credential.ScopeProcessor, "p1"))

	val, err := r.Resolve(ctx, "k", "p1", "c1", "t1")
	require.NoError(t, err)
	require.Equal(t, "processor", val)

	val, err = r.Resolve(ctx, "k", "", "c1", "t1")
	require.NoError(t, err)
	require.Equal(t, "campaign", val)

	val, err = r.Resolve(ctx, "k", "", "", "t1")
	require.NoError(t, err)
	require.Equal(t, "tenant", val)

	val, err = r.Resolve(ctx, "k", "", "", "")
	require.NoError(t, err)
	require.Equal(t, "system", val)
}

func TestResolver_NotFound(t *testing.T) {
	st := memory.New().Stores()
	r := credentials.New(st.Credentials, testMasterKey, time.Minute, time.Minute)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "missing", "", "", "tenant-1")
	require.Error(t, err)
}

func TestResolver_ExpiredTreatedAsAbsent(t *testing.T) {
	st := memory.New().Stores()
	r := credentials.New(st.Credentials, testMasterKey, time.Minute, time.Minute)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, "k", "system", credential.ScopeSystem, ""))

	past := time.Now().Add(-time.Hour)
	expired := &credential.Credential{
		Key:       "k",
		Scope:     credential.ScopeTenant,
		ScopeRef:  "t1",
		ExpiresAt: &past,
	}
	require.NoError(t, st.Credentials.Put(ctx, expired))

	val, err := r.Resolve(ctx, "k", "", "", "t1")
	require.NoError(t, err)
	require.Equal(t, "system", val)
}
