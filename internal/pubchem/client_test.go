package pubchem

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func pubchemStub(t *testing.T, synonymsJSON, propertiesJSON string, synonymsStatus int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/synonyms/JSON"):
			if synonymsStatus != 0 {
				w.WriteHeader(synonymsStatus)
				return
			}
			w.Write([]byte(synonymsJSON))
		case strings.Contains(r.URL.Path, "/property/"):
			w.Write([]byte(propertiesJSON))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestLookupExtractsDevCodesAndCAS(t *testing.T) {
	synonyms := `{"InformationList":{"Information":[{"Synonym":[
		"darolutamide","ODM-201","BAY-1841788","1297538-32-9","Nubeqa","not a code","ODM201"
	]}]}}`
	properties := `{"PropertyTable":{"Properties":[{
		"CID":67171867,"MolecularFormula":"C19H19ClN6O2","MolecularWeight":"398.8",
		"IUPACName":"iupac","CanonicalSMILES":"CC1=...","InChI":"InChI=1S/...","InChIKey":"KEY"
	}]}}`
	srv := pubchemStub(t, synonyms, properties, 0)
	defer srv.Close()

	compound := NewClient(Config{BaseURL: srv.URL}).Lookup(context.Background(), "darolutamide")

	if compound.Err != "" {
		t.Fatalf("unexpected error: %q", compound.Err)
	}
	if len(compound.DevCodes) != 3 {
		t.Fatalf("dev codes = %v, want ODM-201, BAY-1841788, ODM201", compound.DevCodes)
	}
	if compound.CASNumber != "1297538-32-9" {
		t.Fatalf("cas = %q", compound.CASNumber)
	}
	if compound.CID != 67171867 || compound.MolecularFormula != "C19H19ClN6O2" {
		t.Fatalf("properties not filled: %+v", compound)
	}
	if compound.MolecularWeight != "398.8" {
		t.Fatalf("molecular weight = %q", compound.MolecularWeight)
	}
}

func TestLookupNumericMolecularWeight(t *testing.T) {
	synonyms := `{"InformationList":{"Information":[{"Synonym":["x"]}]}}`
	properties := `{"PropertyTable":{"Properties":[{"CID":1,"MolecularWeight":398.8}]}}`
	srv := pubchemStub(t, synonyms, properties, 0)
	defer srv.Close()

	compound := NewClient(Config{BaseURL: srv.URL}).Lookup(context.Background(), "x")
	if compound.MolecularWeight != "398.8" {
		t.Fatalf("molecular weight = %q", compound.MolecularWeight)
	}
}

func TestLookupNotFoundDegrades(t *testing.T) {
	srv := pubchemStub(t, "", "", http.StatusNotFound)
	defer srv.Close()

	compound := NewClient(Config{BaseURL: srv.URL}).Lookup(context.Background(), "nonexistol")

	if compound.Err == "" {
		t.Fatal("expected degraded compound with error detail")
	}
	if compound.Synonyms == nil || compound.DevCodes == nil {
		t.Fatal("collections must be non-nil even on failure")
	}
	if len(compound.DevCodes) != 0 {
		t.Fatalf("dev codes = %v", compound.DevCodes)
	}
}

func TestLookupCapsSynonymsAndDevCodes(t *testing.T) {
	var syns []string
	for i := 0; i < 120; i++ {
		syns = append(syns, `"AB-`+string(rune('1'+i%9))+`234567"`)
	}
	synonyms := `{"InformationList":{"Information":[{"Synonym":[` + strings.Join(syns, ",") + `]}]}}`
	srv := pubchemStub(t, synonyms, `{}`, 0)
	defer srv.Close()

	compound := NewClient(Config{BaseURL: srv.URL}).Lookup(context.Background(), "x")

	if len(compound.Synonyms) != maxSynonyms {
		t.Fatalf("synonyms = %d, want cap %d", len(compound.Synonyms), maxSynonyms)
	}
	if len(compound.DevCodes) != maxDevCodes {
		t.Fatalf("dev codes = %d, want cap %d", len(compound.DevCodes), maxDevCodes)
	}
}

func TestLookupPropertiesFailureIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/synonyms/JSON") {
			w.Write([]byte(`{"InformationList":{"Information":[{"Synonym":["ODM-201"]}]}}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	compound := NewClient(Config{BaseURL: srv.URL}).Lookup(context.Background(), "darolutamide")

	if compound.Err != "" {
		t.Fatalf("synonyms succeeded, lookup must not fail: %q", compound.Err)
	}
	if len(compound.DevCodes) != 1 {
		t.Fatalf("dev codes = %v", compound.DevCodes)
	}
	if compound.CID != 0 {
		t.Fatalf("cid should be empty when properties fail, got %d", compound.CID)
	}
}
