package protocol

import (
	"errors"
	"testing"
)

func TestEncodeUsesWireFieldNames(t *testing.T) {
	tests := []struct {
		in   Message
		want string
	}{
		{RequestFile("abcd1234", 65536), `{"type":"request-file","id":"abcd1234","offset":65536}`},
		{RequestFile("abcd1234", 0), `{"type":"request-file","id":"abcd1234","offset":0}`},
		{Meta("abcd1234", "empty.txt", 0), `{"type":"meta","id":"abcd1234","name":"empty.txt","size":0}`},
		{ChunkStart("abcd1234"), `{"type":"chunk-start","id":"abcd1234"}`},
		{ChunkAbort("abcd1234"), `{"type":"chunk-abort","id":"abcd1234"}`},
		{Clipboard("hi"), `{"type":"clipboard","content":"hi"}`},
	}
	for _, tt := range tests {
		got, err := Encode(tt.in)
		if err != nil {
			t.Fatalf("Encode(%s): %v", tt.in.Type, err)
		}
		if got != tt.want {
			t.Errorf("Encode = %s, want %s", got, tt.want)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Message
		wantErr error
	}{
		{
			name: "meta",
			in:   `{"type":"meta","id":"x1","name":"a.txt","size":42}`,
			want: Meta("x1", "a.txt", 42),
		},
		{
			name: "zero byte meta",
			in:   `{"type":"meta","id":"x1","name":"empty"}`,
			want: Meta("x1", "empty", 0),
		},
		{
			name: "clipboard",
			in:   `{"type":"clipboard","content":"hello"}`,
			want: Clipboard("hello"),
		},
		{
			name:    "chunk-start without id",
			in:      `{"type":"chunk-start"}`,
			wantErr: ErrMalformed,
		},
		{
			name:    "negative offset",
			in:      `{"type":"request-file","id":"x","offset":-1}`,
			wantErr: ErrMalformed,
		},
		{
			name:    "unknown type",
			in:      `{"type":"ping"}`,
			wantErr: ErrUnknownType,
		},
		{
			name:    "not json",
			in:      `meta`,
			wantErr: ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Decode = %+v, want %+v", got, tt.want)
			}
		})
	}
}
