package mpcserver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signaloracle/mpccore/pkg/field"
	"github.com/signaloracle/mpccore/pkg/mpcserver"
	"github.com/signaloracle/mpccore/pkg/shamir"
	"github.com/signaloracle/mpccore/pkg/sharestore"
	"github.com/signaloracle/mpccore/pkg/triple"
	"github.com/signaloracle/mpccore/pkg/wire"
)

// buildSingleValidatorInit assembles a complete semi-honest InitRequest
// for a single-validator (threshold=1, x=1) session, the simplest case
// that still exercises the real wire shapes HandleInit decodes.
func buildSingleValidatorInit(t *testing.T, sessionID, signalID string, available []int) wire.InitRequest {
	t.Helper()
	triples, err := triple.GenerateDealer(len(available), []uint8{1}, 1)
	require.NoError(t, err)
	r, err := field.RandomNonzero()
	require.NoError(t, err)
	rShares, err := shamir.SplitAtPoints(r, []uint8{1}, 1)
	require.NoError(t, err)

	tripleShares := make([]wire.TripleShareSet, len(triples))
	for i, tr := range triples {
		tripleShares[i] = wire.TripleShareSet{A: wire.Encode(tr.A[0].Y), B: wire.Encode(tr.B[0].Y), C: wire.Encode(tr.C[0].Y)}
	}

	return wire.InitRequest{
		SessionID:        sessionID,
		SignalID:         signalID,
		AvailableIndices: available,
		CoordinatorX:     1,
		ParticipantXs:    []int{1},
		Threshold:        1,
		TripleShares:     tripleShares,
		RShareY:          wire.Encode(rShares[0].Y),
	}
}

func postJSON(t *testing.T, url string, body interface{}, out interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// TestInitComputeGateResultFlow drives a complete single-validator
// session through the real HTTP handlers: init, the one real gate, the
// final-output gate, and the result broadcast, confirming the protocol
// reconstructs "available" when the secret matches the available index.
func TestInitComputeGateResultFlow(t *testing.T) {
	shares := sharestore.New()
	secretShareY := field.FromUint64(5).Bytes()
	require.NoError(t, shares.Put("signal-1", "genius-addr", 1, secretShareY, []byte("blob")))

	srv := mpcserver.NewServer(1, shares, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	initReq := buildSingleValidatorInit(t, "sess-1", "signal-1", []int{5})

	var initResp wire.InitResponse
	resp := postJSON(t, ts.URL+"/mpc/init", initReq, &initResp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, initResp.Accepted)

	var gate0Resp wire.ComputeGateResponse
	resp = postJSON(t, ts.URL+"/mpc/compute_gate", wire.ComputeGateRequest{SessionID: "sess-1", GateIdx: 0}, &gate0Resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d0, err := gate0Resp.DValue.Decode()
	require.NoError(t, err)
	e0, err := gate0Resp.EValue.Decode()
	require.NoError(t, err)

	dHex, eHex := wire.Encode(d0), wire.Encode(e0)
	var finalResp wire.ComputeGateResponse
	resp = postJSON(t, ts.URL+"/mpc/compute_gate", wire.ComputeGateRequest{
		SessionID: "sess-1", GateIdx: wire.FinalGateIdx, PrevOpenedD: &dHex, PrevOpenedE: &eHex,
	}, &finalResp)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	outputShare, err := finalResp.DValue.Decode()
	require.NoError(t, err)
	assert.True(t, outputShare.IsZero(), "secret equal to the available index must reconstruct to zero")

	resultResp := postJSON(t, ts.URL+"/mpc/result", wire.ResultRequest{
		SessionID: "sess-1", SignalID: "signal-1", Available: true, ParticipatingValidators: 1,
	}, nil)
	assert.Equal(t, http.StatusNoContent, resultResp.StatusCode)

	statusResp, err := http.Get(ts.URL + "/mpc/sess-1/status")
	require.NoError(t, err)
	defer statusResp.Body.Close()
	var status wire.StatusResponse
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&status))
	assert.Equal(t, wire.StatusComplete, status.Status)
}

// TestComputeGateRejectsOutOfOrder confirms the wire-level strict
// gate-ordering invariant survives the HTTP boundary.
func TestComputeGateRejectsOutOfOrder(t *testing.T) {
	shares := sharestore.New()
	require.NoError(t, shares.Put("signal-2", "genius-addr", 1, field.FromUint64(1).Bytes(), []byte("blob")))
	srv := mpcserver.NewServer(1, shares, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	initReq := buildSingleValidatorInit(t, "sess-2", "signal-2", []int{1, 2})
	var initResp wire.InitResponse
	postJSON(t, ts.URL+"/mpc/init", initReq, &initResp)
	require.True(t, initResp.Accepted)

	resp := postJSON(t, ts.URL+"/mpc/compute_gate", wire.ComputeGateRequest{SessionID: "sess-2", GateIdx: 1}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestHandleInitRejectsUnknownSignal confirms a semi-honest init request
// for a signal this validator holds no share for fails cleanly rather
// than constructing a zero-valued ParticipantState.
func TestHandleInitRejectsUnknownSignal(t *testing.T) {
	shares := sharestore.New()
	srv := mpcserver.NewServer(1, shares, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	initReq := buildSingleValidatorInit(t, "sess-3", "no-such-signal", []int{1})
	resp := postJSON(t, ts.URL+"/mpc/init", initReq, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestHandleAbortStopsFurtherGates confirms an aborted session rejects
// subsequent compute_gate calls rather than silently continuing.
func TestHandleAbortStopsFurtherGates(t *testing.T) {
	shares := sharestore.New()
	require.NoError(t, shares.Put("signal-4", "genius-addr", 1, field.FromUint64(9).Bytes(), []byte("blob")))
	srv := mpcserver.NewServer(1, shares, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	initReq := buildSingleValidatorInit(t, "sess-4", "signal-4", []int{1})
	var initResp wire.InitResponse
	postJSON(t, ts.URL+"/mpc/init", initReq, &initResp)
	require.True(t, initResp.Accepted)

	abortResp := postJSON(t, ts.URL+"/mpc/abort", wire.AbortRequest{SessionID: "sess-4", Reason: "mac_failure", GateIdx: 0}, nil)
	assert.Equal(t, http.StatusNoContent, abortResp.StatusCode)

	statusResp, err := http.Get(ts.URL + "/mpc/sess-4/status")
	require.NoError(t, err)
	defer statusResp.Body.Close()
	var status wire.StatusResponse
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&status))
	assert.Equal(t, wire.StatusAborted, status.Status)

	resp := postJSON(t, ts.URL+"/mpc/compute_gate", wire.ComputeGateRequest{SessionID: "sess-4", GateIdx: 0}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestHandleShareInfoReportsXCoordOnly confirms share_info never leaks
// the share value itself.
func TestHandleShareInfoReportsXCoordOnly(t *testing.T) {
	shares := sharestore.New()
	require.NoError(t, shares.Put("signal-5", "genius-addr", 7, field.FromUint64(1).Bytes(), []byte("blob")))
	srv := mpcserver.NewServer(7, shares, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/signal/signal-5/share_info")
	require.NoError(t, err)
	defer resp.Body.Close()
	var info wire.ShareInfoResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, 7, info.ShareX)
	assert.Nil(t, info.ShareY)
}
