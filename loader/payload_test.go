package loader

import (
	"errors"
	"reflect"
	"testing"
)

func TestPayloadRoundTrip(t *testing.T) {
	data := EncodePayload("Greeter.Functions", []string{"Handler", "Helpers"}, []byte{1, 2, 3})

	hdr, err := ParsePayload(data)
	if err != nil {
		t.Fatalf("ParsePayload failed: %v", err)
	}
	if hdr.AssemblyName != "Greeter.Functions" {
		t.Errorf("AssemblyName = %q", hdr.AssemblyName)
	}
	if !reflect.DeepEqual(hdr.ExportedTypes, []string{"Handler", "Helpers"}) {
		t.Errorf("ExportedTypes = %v", hdr.ExportedTypes)
	}
	if hdr.BodySize != 3 {
		t.Errorf("BodySize = %d", hdr.BodySize)
	}
}

func TestPayloadBadMagic(t *testing.T) {
	data := EncodePayload("A", nil, nil)
	data[0] = 'X'

	if err := ValidatePayload(data); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("ValidatePayload = %v, want ErrInvalidPayload", err)
	}
}

func TestPayloadBadVersion(t *testing.T) {
	data := EncodePayload("A", nil, nil)
	data[4] = 99

	if err := ValidatePayload(data); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("ValidatePayload = %v, want ErrInvalidPayload", err)
	}
}

func TestPayloadTruncated(t *testing.T) {
	data := EncodePayload("Assembly", []string{"T"}, []byte("body"))
	for _, cut := range []int{0, 3, 11, len(data) / 2, len(data) - 1} {
		if err := ValidatePayload(data[:cut]); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("ValidatePayload(cut=%d) = %v, want ErrInvalidPayload", cut, err)
		}
	}
}

func TestPayloadEmptySections(t *testing.T) {
	data := EncodePayload("", nil, nil)
	hdr, err := ParsePayload(data)
	if err != nil {
		t.Fatalf("ParsePayload failed: %v", err)
	}
	if hdr.AssemblyName != "" || len(hdr.ExportedTypes) != 0 || hdr.BodySize != 0 {
		t.Errorf("Unexpected header: %+v", hdr)
	}
}
