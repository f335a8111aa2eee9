package models

import (
	"encoding/json"
	"math"
	"testing"
)

func intPtr(n int) *int { return &n }

func TestRequest_Validate(t *testing.T) {
	valid := func() *Request {
		return &Request{Collection: "diary", QueryVector: []float32{1, 2}, K: 3, VectorStorePath: "/store"}
	}
	tests := []struct {
		name    string
		mutate  func(r *Request)
		wantErr bool
	}{
		{"valid", func(r *Request) {}, false},
		{"valid with ef", func(r *Request) { r.EfSearch = intPtr(64) }, false},
		{"empty collection", func(r *Request) { r.Collection = "" }, true},
		{"empty vector", func(r *Request) { r.QueryVector = nil }, true},
		{"NaN component", func(r *Request) { r.QueryVector[1] = float32(math.NaN()) }, true},
		{"Inf component", func(r *Request) { r.QueryVector[0] = float32(math.Inf(1)) }, true},
		{"zero k", func(r *Request) { r.K = 0 }, true},
		{"negative k", func(r *Request) { r.K = -2 }, true},
		{"negative ef", func(r *Request) { r.EfSearch = intPtr(-1) }, true},
		{"empty store path", func(r *Request) { r.VectorStorePath = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			err := r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequest_EfSearchOr(t *testing.T) {
	r := &Request{}
	if got := r.EfSearchOr(150); got != 150 {
		t.Errorf("absent: got %d, want 150", got)
	}
	r.EfSearch = intPtr(0)
	if got := r.EfSearchOr(150); got != 150 {
		t.Errorf("zero: got %d, want 150", got)
	}
	r.EfSearch = intPtr(40)
	if got := r.EfSearchOr(150); got != 40 {
		t.Errorf("set: got %d, want 40", got)
	}
}

func TestRequest_WireNames(t *testing.T) {
	var r Request
	in := `{"collection":"日记","queryVector":[0.5,1],"k":2,"efSearch":32,"vectorStorePath":"/v"}`
	if err := json.Unmarshal([]byte(in), &r); err != nil {
		t.Fatal(err)
	}
	if r.Collection != "日记" || len(r.QueryVector) != 2 || r.K != 2 || r.EfSearchOr(0) != 32 || r.VectorStorePath != "/v" {
		t.Errorf("decoded %+v", r)
	}
}

func TestResponse_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		want string
	}{
		{"empty success", Success(nil), `{"status":"success","results":[]}`},
		{"success", Success([]json.RawMessage{json.RawMessage(`{"text":"a"}`)}), `{"status":"success","results":[{"text":"a"}]}`},
		{"error", Failure("not_found", "no such collection"), `{"status":"error","error":"no such collection","kind":"not_found"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.resp)
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != tt.want {
				t.Errorf("got %s, want %s", b, tt.want)
			}
		})
	}
}
