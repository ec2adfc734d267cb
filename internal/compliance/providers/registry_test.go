package providers_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klok/internal/compliance/models"
	"klok/internal/compliance/providers"
	"klok/internal/compliance/providers/za"
	dErrors "klok/pkg/domain-errors"
)

func TestRegistryLookup(t *testing.T) {
	reg, err := providers.NewRegistry(za.MustNew(za.DefaultConfig()))
	require.NoError(t, err)

	p, err := reg.Get("za")
	require.NoError(t, err)
	assert.Equal(t, "ZA", p.Code())

	_, err = reg.Get("XX")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnsupportedJurisdiction))

	assert.Equal(t, []string{"ZA"}, reg.Codes())
	assert.Len(t, reg.All(), 1)
}

func TestRegistryReplacementIsVisible(t *testing.T) {
	v1 := za.MustNew(za.DefaultConfig())
	reg, err := providers.NewRegistry(v1)
	require.NoError(t, err)

	cfg := za.DefaultConfig()
	cfg.RuleVersion = "za-next"
	v2 := za.MustNew(cfg)

	prev, err := reg.Register(" za ", v2)
	require.NoError(t, err)
	assert.Same(t, v1, prev)

	got, err := reg.Get("ZA")
	require.NoError(t, err)
	assert.Equal(t, "za-next", got.RuleVersion())
}

func TestRegistryRejectsInvalidRegistration(t *testing.T) {
	reg, err := providers.NewRegistry()
	require.NoError(t, err)

	_, err = reg.Register("", za.MustNew(za.DefaultConfig()))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = reg.Register("ZA", nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	assert.Empty(t, reg.Codes())
}

func TestRegistryConcurrentReadsDuringReplacement(t *testing.T) {
	reg, err := providers.NewRegistry(za.MustNew(za.DefaultConfig()))
	require.NoError(t, err)

	versions := []string{"a", "b", "c", "d"}
	builds := make([]providers.Provider, len(versions))
	for i, v := range versions {
		cfg := za.DefaultConfig()
		cfg.RuleVersion = v
		builds[i] = za.MustNew(cfg)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				p, err := reg.Get("ZA")
				if assert.NoError(t, err) {
					_, ok := p.Classifications().PathOf(models.Consultant)
					assert.True(t, ok)
				}
			}
		}()
	}
	for _, p := range builds {
		wg.Add(1)
		go func(p providers.Provider) {
			defer wg.Done()
			_, err := reg.Register("ZA", p)
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()

	got, err := reg.Get("ZA")
	require.NoError(t, err)
	assert.Contains(t, versions, got.RuleVersion())
}
