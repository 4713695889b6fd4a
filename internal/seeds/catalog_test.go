package seeds

import (
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/garyellow/erp-gateway-go/internal/errors"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"seed/crm/leads.json":     {Data: []byte(`[{"id":"L-1001","company":"Contoso"},{"id":"L-1002","company":"Fabrikam"}]`)},
		"seed/hcm/employees.json": {Data: []byte(`[{"id":"E-1","name":"Maya"}]`)},
		"seed/README.md":          {Data: []byte("ignored")},
	}
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(testFS(), "seed")
	require.NoError(t, err)
	return c
}

func TestNewCatalog(t *testing.T) {
	c := newTestCatalog(t)
	assert.Equal(t, []string{"crm/leads", "hcm/employees"}, c.Names())
	assert.True(t, c.Has("crm/leads"))
	assert.False(t, c.Has("README"))
}

func TestNewCatalog_RejectsInvalidSeed(t *testing.T) {
	fsys := fstest.MapFS{"seed/bad.json": {Data: []byte(`{"id":"x"}`)}}
	_, err := NewCatalog(fsys, "seed")
	require.Error(t, err)
	assert.True(t, domerrors.IsInvalidInput(err))
}

func TestCatalog_RecordsAreFresh(t *testing.T) {
	c := newTestCatalog(t)

	first, err := c.Records("crm/leads")
	require.NoError(t, err)
	first[0]["company"] = "Mutated"

	second, err := c.Records("crm/leads")
	require.NoError(t, err)
	assert.Equal(t, "Contoso", second[0]["company"])
}

func TestCatalog_Lookup(t *testing.T) {
	c := newTestCatalog(t)

	rec, err := c.Lookup("crm/leads", "id", "L-1002")
	require.NoError(t, err)
	assert.Equal(t, "Fabrikam", rec["company"])

	_, err = c.Lookup("crm/leads", "id", "L-404")
	assert.True(t, domerrors.IsNotFound(err))

	_, err = c.Records("crm/unknown")
	assert.True(t, domerrors.IsNotFound(err))
}

func TestCatalog_Overrides(t *testing.T) {
	c := newTestCatalog(t)

	require.NoError(t, c.SetOverride("crm/leads", []byte(`[{"id":"L-9"}]`), "etag-1"))
	assert.Equal(t, SourceOverride, c.Source("crm/leads"))
	assert.Equal(t, "etag-1", c.ETag("crm/leads"))

	records, err := c.Records("crm/leads")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "L-9", records[0]["id"])

	assert.Error(t, c.SetOverride("crm/leads", []byte(`not json`), "etag-2"))
	assert.Equal(t, "etag-1", c.ETag("crm/leads"), "invalid override must not replace the previous one")

	assert.True(t, domerrors.IsNotFound(c.SetOverride("crm/unknown", []byte(`[]`), "x")))

	c.ClearOverride("crm/leads")
	assert.Equal(t, SourceEmbedded, c.Source("crm/leads"))
	assert.Empty(t, c.ETag("crm/leads"))
}

func TestCatalog_ConcurrentAccess(t *testing.T) {
	c := newTestCatalog(t)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			if i%2 == 0 {
				_ = c.SetOverride("crm/leads", []byte(`[{"id":"L-1"}]`), "e")
				return
			}
			_, _ = c.Records("crm/leads")
		})
	}
	wg.Wait()
}
