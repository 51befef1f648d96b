package httpapi_test

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rehabdao/attestd/internal/attest"
)

func TestStreamEvents(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.handler)
	defer ts.Close()

	thA := common.HexToHash("0x0a").Hex()
	resp, err := http.Get(ts.URL + "/attestations/events?therapistId=" + strings.ToUpper(thA))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	skipped := storedRecord(common.HexToHash("0x01").Hex(), common.HexToHash("0x0b").Hex(), "2025-01-15", 1)
	wanted := storedRecord(common.HexToHash("0x02").Hex(), thA, "2025-01-15", 2)
	require.NoError(t, srv.indexer.Enqueue(skipped))
	require.NoError(t, srv.indexer.Enqueue(wanted))

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	var eventName string
	deadline := time.After(3 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before event")
			}
			if strings.HasPrefix(line, "event: ") {
				eventName = strings.TrimPrefix(line, "event: ")
				continue
			}
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev attest.Event
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
			assert.Equal(t, string(attest.EventIndexed), eventName)
			assert.Equal(t, wanted.AttestationUID, ev.Record.AttestationUID)
			return
		case <-deadline:
			t.Fatal("no event received")
		}
	}
}
