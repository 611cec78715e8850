package hibp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
)

func TestGroupThousands(t *testing.T) {
	cases := map[int64]string{
		0:       "0",
		7:       "7",
		999:     "999",
		1000:    "1,000",
		3861493: "3,861,493",
	}
	for n, want := range cases {
		require.Equal(t, want, GroupThousands(n))
	}
}

func TestHashPassword(t *testing.T) {
	prefix, suffix := hashPassword("password")
	require.Equal(t, "5BAA6", prefix)
	require.Equal(t, "1E4C9B93F3F0682250B6CF8331B7EE68FD8", suffix)
}

func TestMatchSuffix(t *testing.T) {
	body := []byte("AAAA:3\r\n1e4c9b93f3f0682250b6cf8331b7ee68fd8:42\r\nBBBB:bad")
	require.Equal(t, int64(42), matchSuffix(body, "1E4C9B93F3F0682250B6CF8331B7EE68FD8"))
	require.Zero(t, matchSuffix(body, "CCCC"))
	require.Zero(t, matchSuffix(body, "BBBB"))
	require.Zero(t, matchSuffix(nil, "AAAA"))
}

func TestTextFallsBackToResultHeader(t *testing.T) {
	result := &core.LookupResult{
		Operation: core.OperationBreachByName,
		Found:     true,
		Data:      json.RawMessage(`{"Name":"Adobe","PwnCount":152445165}`),
	}
	require.Equal(t, "Result for getBreachByName:\n\n{\n  \"Name\": \"Adobe\",\n  \"PwnCount\": 152445165\n}", Text(result))
	require.Empty(t, Text(nil))
}

func TestCacheTTL(t *testing.T) {
	policy := CachePolicy{CatalogTTL: 0, RangeTTL: 0}
	require.Positive(t, cacheTTL(policy, core.OperationDataClasses))
	require.Positive(t, cacheTTL(policy, core.OperationPasswordRange))
	require.Zero(t, cacheTTL(policy, core.OperationBreachesForAccount))
	require.Zero(t, cacheTTL(policy, core.OperationPastesForAccount))
}
