package core

import "testing"

func TestOracleContractRequestAllocatesSequentialIDs(t *testing.T) {
	o := NewOracleContract(NewDataCache(NewMemStore()))
	requester := UInt160{1, 2, 3}
	callback := UInt160{4, 5, 6}

	first, err := o.Request(nil, requester, "https://example.test/price", "$.price", callback, "onPrice", 1000)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	second, err := o.Request(nil, requester, "https://example.test/rate", "$.rate", callback, "onRate", 1000)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if second.ID != first.ID+1 {
		t.Fatalf("second.ID = %d, want %d", second.ID, first.ID+1)
	}
	if first.Token == second.Token {
		t.Fatal("each request should get a distinct idempotency token")
	}
}

func TestOracleContractRequestRejectsBadURL(t *testing.T) {
	o := NewOracleContract(NewDataCache(NewMemStore()))
	if _, err := o.Request(nil, UInt160{1}, "", "", UInt160{2}, "cb", 0); err == nil {
		t.Fatal("Request with empty url should error")
	}
}

func TestOracleContractIsPendingAndFinish(t *testing.T) {
	o := NewOracleContract(NewDataCache(NewMemStore()))
	req, err := o.Request(nil, UInt160{1}, "https://example.test", "", UInt160{2}, "cb", 500)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !o.IsPending(req.ID) {
		t.Fatal("request should be pending right after submission")
	}
	got, err := o.GetRequest(req.ID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.URL != req.URL || got.Requester != req.Requester || got.GasForResponse != req.GasForResponse {
		t.Fatalf("GetRequest roundtrip mismatch: got %+v, want %+v", got, req)
	}

	if err := o.Finish(req.ID); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if o.IsPending(req.ID) {
		t.Fatal("request should no longer be pending after Finish")
	}
	if err := o.Finish(req.ID); err == nil {
		t.Fatal("Finish on an already-finished request should error")
	}
}

func TestOracleContractGetRequestUnknownID(t *testing.T) {
	o := NewOracleContract(NewDataCache(NewMemStore()))
	if _, err := o.GetRequest(999); err == nil {
		t.Fatal("GetRequest on an unknown id should error")
	}
}
