package payload

import "testing"

func TestValidateRequiresExactlyOnePrimary(t *testing.T) {
	cases := []struct {
		name    string
		d       Descriptor
		wantErr error
	}{
		{
			name:    "no variants",
			d:       Descriptor{},
			wantErr: ErrNoVariants,
		},
		{
			name: "no primary",
			d: Descriptor{Variants: []VariantDescriptor{
				{Encoding: EncodingIdentity, LogicalLength: 4, StorageLength: 4},
			}},
			wantErr: ErrNoPrimary,
		},
		{
			name: "two primaries",
			d: Descriptor{Variants: []VariantDescriptor{
				{Encoding: EncodingIdentity, LogicalLength: 4, StorageLength: 4, IsPrimary: true},
				{VariantID: 1, Encoding: EncodingGzip, LogicalLength: 4, StorageLength: 2, IsPrimary: true},
			}},
			wantErr: ErrMultiplePrimary,
		},
		{
			name: "range ready without granularity",
			d: Descriptor{Variants: []VariantDescriptor{
				{Encoding: EncodingIdentity, LogicalLength: 4, StorageLength: 4, IsPrimary: true, Capabilities: CapRangeReady},
			}},
			wantErr: ErrRangeGranularity,
		},
		{
			name: "identity storage shorter than logical",
			d: Descriptor{Variants: []VariantDescriptor{
				{Encoding: EncodingIdentity, LogicalLength: 10, StorageLength: 4, IsPrimary: true},
			}},
			wantErr: ErrStorageLength,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.d.Validate(); err != tc.wantErr {
				t.Fatalf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateMaxVariants(t *testing.T) {
	d := Descriptor{}
	for i := 0; i < MaxVariants+1; i++ {
		d.Variants = append(d.Variants, VariantDescriptor{VariantID: uint8(i), Encoding: EncodingIdentity, IsPrimary: i == 0})
	}
	if err := d.Validate(); err != ErrTooManyVariants {
		t.Fatalf("Validate() = %v, want ErrTooManyVariants", err)
	}

	d.Variants = d.Variants[:MaxVariants]
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate() at MaxVariants = %v, want nil", err)
	}
}

func TestIdentityOnly(t *testing.T) {
	d := IdentityOnly(128)
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
	v, ok := d.Primary()
	if !ok {
		t.Fatal("Primary() ok = false, want true")
	}
	if v.Encoding != EncodingIdentity || v.LogicalLength != 128 || v.StorageLength != 128 {
		t.Fatalf("unexpected primary variant: %+v", v)
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	d := Descriptor{Variants: []VariantDescriptor{
		{VariantID: 0, Encoding: EncodingIdentity, LogicalLength: 4096, StorageLength: 4096, IsPrimary: true, Capabilities: CapRangeReady, RangeGranularity: 512},
		{VariantID: 1, Encoding: EncodingGzip, LogicalLength: 4096, StorageLength: 1024, Capabilities: CapZeroCopy},
	}}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	packed := d.Pack()
	if len(packed) != PackedSize(2) {
		t.Fatalf("Pack() length = %d, want %d", len(packed), PackedSize(2))
	}

	got, err := Unpack(packed)
	if err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	if len(got.Variants) != 2 {
		t.Fatalf("Unpack() variant count = %d, want 2", len(got.Variants))
	}
	for i := range d.Variants {
		if got.Variants[i] != d.Variants[i] {
			t.Fatalf("variant %d round-trip mismatch: got %+v, want %+v", i, got.Variants[i], d.Variants[i])
		}
	}
}

func TestUnpackRejectsSchemaMismatch(t *testing.T) {
	d := IdentityOnly(1)
	packed := d.Pack()
	packed[0] = SchemaVersion + 1

	if _, err := Unpack(packed); err == nil {
		t.Fatal("Unpack() error = nil, want schema version error")
	}
}

func TestUnpackRejectsTruncated(t *testing.T) {
	d := IdentityOnly(1)
	packed := d.Pack()

	if _, err := Unpack(packed[:len(packed)-1]); err == nil {
		t.Fatal("Unpack() error = nil, want truncation error")
	}
	if _, err := Unpack(nil); err == nil {
		t.Fatal("Unpack(nil) error = nil, want error")
	}
}
