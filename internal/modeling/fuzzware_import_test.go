package modeling

import "testing"

const sampleFuzzwareYAML = `
mmio_models:
  bitextract:
    mmio_model_0:
      pc: 0x1000
      addr: 0x40001000
      left_shift: 3
      mask: 0xf0
      size: 1
  constant:
    mmio_model_1:
      pc: 0xffffffff
      addr: 0x40001004
      val: 42
  passthrough:
    mmio_model_2:
      pc: 0x2000
      addr: 0x40001008
      init_val: 7
  set:
    mmio_model_3:
      pc: 0x3000
      addr: 0x4000100c
      vals: [1, 2, 3]
`

func TestImportFuzzwareModelsAllKinds(t *testing.T) {
	entries, err := ImportFuzzwareModels([]byte(sampleFuzzwareYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("want 4 imported models, got %d", len(entries))
	}

	byKind := map[ModelKind]Mmio{}
	for _, e := range entries {
		byKind[e.Model.Kind] = e
	}

	be := byKind[KindBitExtract]
	if !be.Context.HasPC() || be.Context.PC() != 0x1000 {
		t.Fatalf("bitextract should be access-scoped at pc 0x1000, got %+v", be.Context)
	}
	if be.Model.BitExtract.BitsWidth != 8 {
		t.Fatalf("size:1 byte should round to 8 bits, got %d", be.Model.BitExtract.BitsWidth)
	}
	if be.Model.BitExtract.LeftShift != 0 {
		t.Fatalf("left_shift:3 should round down to byte boundary (0), got %d", be.Model.BitExtract.LeftShift)
	}

	constant := byKind[KindConstant]
	if constant.Context.HasPC() {
		t.Fatal("pc 0xffffffff should import as an address-only context")
	}
	if constant.Model.Constant != 42 {
		t.Fatalf("want constant 42, got %d", constant.Model.Constant)
	}

	passthrough := byKind[KindPassthrough]
	if passthrough.Model.InitialValue != 7 {
		t.Fatalf("want initial value 7, got %d", passthrough.Model.InitialValue)
	}

	set := byKind[KindSet]
	if len(set.Model.Values) != 3 {
		t.Fatalf("want 3 set values, got %d", len(set.Model.Values))
	}
}

func TestImportFuzzwareModelsEmptyDocument(t *testing.T) {
	entries, err := ImportFuzzwareModels([]byte("mmio_models: {}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("want no models from an empty document, got %d", len(entries))
	}
}

func TestImportFuzzwareModelsRejectsMalformedYAML(t *testing.T) {
	if _, err := ImportFuzzwareModels([]byte("not: [valid")); err == nil {
		t.Fatal("want an error for malformed YAML")
	}
}

func TestImportFuzzwareModelsPassthroughDefaultsInitValToZero(t *testing.T) {
	const doc = `
mmio_models:
  passthrough:
    m:
      pc: 0x10
      addr: 0x40001000
`
	entries, err := ImportFuzzwareModels([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Model.InitialValue != 0 {
		t.Fatalf("want default initial value 0, got %+v", entries)
	}
}
