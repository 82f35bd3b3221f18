package scanblocks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/manifest-network/blockscan/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newNodeServer serves eth_blockNumber and eth_getBlockByNumber for blocks 1..len(counts).
func newNodeServer(t *testing.T, counts ...int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params []interface{}   `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "eth_blockNumber":
			resp["result"] = fmt.Sprintf("0x%x", len(counts))
		case "eth_getBlockByNumber":
			height, _ := strconv.ParseUint(strings.TrimPrefix(req.Params[0].(string), "0x"), 16, 64)
			if height == 0 || height > uint64(len(counts)) {
				resp["result"] = nil
				break
			}
			txs := make([]string, counts[height-1])
			for i := range txs {
				txs[i] = fmt.Sprintf("0x%064x", i)
			}
			resp["result"] = map[string]interface{}{"transactions": txs}
		default:
			resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestScanCommand(t *testing.T) {
	server := newNodeServer(t, 200, 200, 199, 200, 200)

	for _, transport := range []string{"auto", "http", "geth"} {
		t.Run(transport, func(t *testing.T) {
			out, err := execute(t, "--endpoint", server.URL, "--expected", "200", "--transport", transport)
			require.NoError(t, err)

			want := "block 1's tx count: 200 -> invalid block list: []\n" +
				"block 2's tx count: 200 -> invalid block list: []\n" +
				"block 3's tx count: 199 -> invalid block list: [3]\n" +
				"block 4's tx count: 200 -> invalid block list: [3]\n" +
				"block 5's tx count: 200 -> invalid block list: [3]\n" +
				"\n" +
				"there are 1 invalid blocks which have an unexpected tx count (expected 200)\n" +
				"   invalid block number: 3 / tx count: 199\n" +
				"\n"
			assert.Equal(t, want, out)
		})
	}
}

func TestScanCommandEveryBlockMismatches(t *testing.T) {
	server := newNodeServer(t, 5, 5, 5)

	out, err := execute(t, "-e", server.URL, "-x", "10", "--max-concurrency", "2", "--output", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"expected": 10,
		"start": 1,
		"stop": 3,
		"scanned": 3,
		"mismatches": [
			{"height": 1, "txCount": 5},
			{"height": 2, "txCount": 5},
			{"height": 3, "txCount": 5}
		]
	}`, out)
}

func TestScanCommandEmptyChain(t *testing.T) {
	server := newNodeServer(t)

	out, err := execute(t, "--endpoint", server.URL, "--expected", "200")
	require.NoError(t, err)
	assert.Equal(t, "\nthere are 0 invalid blocks which have an unexpected tx count (expected 200)\n\n", out)
}

func TestScanCommandConnectionError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	out, err := execute(t, "--endpoint", endpoint, "--expected", "200")
	var connErr *scanner.ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, endpoint, connErr.Endpoint)
	assert.Empty(t, out)
}

func TestScanCommandFetchError(t *testing.T) {
	// the node reports a tip of 3 but answers null for every block
	badServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": nil}
		if req.Method == "eth_blockNumber" {
			resp["result"] = "0x3"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer badServer.Close()

	_, err := execute(t, "--endpoint", badServer.URL, "--expected", "1")
	var fetchErr *scanner.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, uint64(1), fetchErr.Height)

	out, err := execute(t, "--endpoint", badServer.URL, "--expected", "1", "--skip-failed")
	require.NoError(t, err)
	assert.Contains(t, out, "   failed block number: 1\n   failed block number: 2\n   failed block number: 3\n")
}

func TestScanCommandValidation(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing endpoint", args: []string{"--expected", "200"}, wantErr: "endpoint is required"},
		{name: "missing expected", args: []string{"--endpoint", "http://localhost:8545"}, wantErr: "expected transaction count"},
		{name: "bad output", args: []string{"-e", "http://localhost:8545", "-x", "1", "-o", "xml"}, wantErr: "unsupported output format"},
		{name: "bad log level", args: []string{"-e", "http://localhost:8545", "-x", "1", "-l", "loud"}, wantErr: "invalid log level"},
		{name: "unexpected argument", args: []string{"extra"}, wantErr: "unknown command"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, tc.args...)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestScanCommandEnvironment(t *testing.T) {
	server := newNodeServer(t, 3, 4)
	t.Setenv("BLOCKSCAN_ENDPOINT", server.URL)
	t.Setenv("BLOCKSCAN_EXPECTED", "3")
	t.Setenv("BLOCKSCAN_MAX_CONCURRENCY", "2")

	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "   invalid block number: 2 / tx count: 4\n")
}

func TestScanCommandConfigFile(t *testing.T) {
	server := newNodeServer(t, 3, 3, 2)
	configFile := filepath.Join(t.TempDir(), "scan.yaml")
	content := fmt.Sprintf("endpoint: %s\nexpected: 3\noutput: json\n", server.URL)
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o600))

	out, err := execute(t, "--config", configFile)
	require.NoError(t, err)

	var summary struct {
		Mismatches []struct {
			Height  uint64 `json:"height"`
			TxCount uint64 `json:"txCount"`
		} `json:"mismatches"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Len(t, summary.Mismatches, 1)
	assert.Equal(t, uint64(3), summary.Mismatches[0].Height)
	assert.Equal(t, uint64(2), summary.Mismatches[0].TxCount)
}

func TestScanCommandTransportMismatch(t *testing.T) {
	out, err := execute(t, "--endpoint", "ws://localhost:8546", "--expected", "200", "--transport", "http")
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid configuration")

	var connErr *scanner.ConnectionError
	assert.False(t, errors.As(err, &connErr))
	assert.Empty(t, out)
}

func TestScanCommandProgressSingleBlock(t *testing.T) {
	server := newNodeServer(t, 199)

	out, err := execute(t, "--endpoint", server.URL, "--expected", "200", "--progress")
	require.NoError(t, err)
	want := "block 1's tx count: 199 -> invalid block list: [1]\n" +
		"\n" +
		"there are 1 invalid blocks which have an unexpected tx count (expected 200)\n" +
		"   invalid block number: 1 / tx count: 199\n" +
		"\n"
	assert.Equal(t, want, out)
}

func TestScanCommandMetricsServerStops(t *testing.T) {
	server := newNodeServer(t, 200, 200)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	_, err = execute(t, "--endpoint", server.URL, "--expected", "200", "--metrics-addr", addr)
	require.NoError(t, err)

	// the listener is released once the command returns
	l, err = net.Listen("tcp", addr)
	require.NoError(t, err)
	require.NoError(t, l.Close())
}
