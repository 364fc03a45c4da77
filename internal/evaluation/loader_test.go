package evaluation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
)

func TestLoadGoldenQueries_ValidFile(t *testing.T) {
	content := `[
		{"id": "q1", "location": "Phoenix, AZ", "category": "location", "expected_facilities": ["Camelback Memory Care", "Tempe Gardens"], "difficulty": "easy"},
		{"id": "q2", "location": "Tucson", "category": "filtered", "filters": {"facility_types": ["skilled-nursing"], "price_tiers": ["$$"], "min_rating": 4}, "expected_facilities": ["Tucson Skilled Nursing"], "difficulty": "medium"}
	]`
	path := writeTempFile(t, content)

	queries, err := LoadGoldenQueries(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(queries))
	}
	if queries[0].ID != "q1" {
		t.Errorf("expected id q1, got %s", queries[0].ID)
	}
	if queries[0].Category != CategoryLocation {
		t.Errorf("expected category location, got %s", queries[0].Category)
	}
	if len(queries[0].ExpectedFacilities) != 2 {
		t.Errorf("expected 2 facilities, got %d", len(queries[0].ExpectedFacilities))
	}
	if queries[1].Location != "Tucson" {
		t.Errorf("expected location 'Tucson', got %s", queries[1].Location)
	}
	f := queries[1].Filters
	if len(f.FacilityTypes) != 1 || f.FacilityTypes[0] != entities.FacilityTypeSkilledNursing {
		t.Errorf("expected skilled-nursing filter, got %v", f.FacilityTypes)
	}
	if len(f.PriceTiers) != 1 || f.PriceTiers[0] != entities.PriceTierModerate {
		t.Errorf("expected moderate price tier, got %v", f.PriceTiers)
	}
	if f.MinRating != 4 {
		t.Errorf("expected min rating 4, got %f", f.MinRating)
	}
}

func TestLoadGoldenQueries_InvalidFile(t *testing.T) {
	_, err := LoadGoldenQueries("/nonexistent/path.json")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadGoldenQueries_InvalidJSON(t *testing.T) {
	path := writeTempFile(t, `not valid json`)
	_, err := LoadGoldenQueries(path)
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestLoadGoldenQueries_EmptyArray(t *testing.T) {
	path := writeTempFile(t, `[]`)
	queries, err := LoadGoldenQueries(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(queries) != 0 {
		t.Errorf("expected 0 queries, got %d", len(queries))
	}
}

func TestLoadGoldenQueries_ShippedSetIsValid(t *testing.T) {
	queries, err := LoadGoldenQueries(filepath.Join("..", "..", "config", "golden_queries.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(queries) == 0 {
		t.Fatal("expected shipped golden queries")
	}
	if err := ValidateGoldenQueries(queries); err != nil {
		t.Errorf("shipped golden queries invalid: %v", err)
	}
}

func TestGoldenQuery_CategoryValidation(t *testing.T) {
	tests := []struct {
		category Category
		valid    bool
	}{
		{CategoryLocation, true},
		{CategoryFiltered, true},
		{CategoryRole, true},
		{Category("unknown"), false},
		{Category(""), false},
	}
	for _, tt := range tests {
		got := tt.category.IsValid()
		if got != tt.valid {
			t.Errorf("Category(%q).IsValid() = %v, want %v", tt.category, got, tt.valid)
		}
	}
}

func validQuery(id string) GoldenQuery {
	return GoldenQuery{
		ID:                 id,
		Location:           "Phoenix",
		Category:           CategoryLocation,
		ExpectedFacilities: []string{"Camelback Memory Care"},
		Difficulty:         "easy",
	}
}

func TestValidateGoldenQueries_MissingID(t *testing.T) {
	q := validQuery("")
	err := ValidateGoldenQueries([]GoldenQuery{q})
	if err == nil {
		t.Error("expected validation error for missing ID")
	}
}

func TestValidateGoldenQueries_MissingLocation(t *testing.T) {
	q := validQuery("q1")
	q.Location = ""
	err := ValidateGoldenQueries([]GoldenQuery{q})
	if err == nil {
		t.Error("expected validation error for missing location")
	}
}

func TestValidateGoldenQueries_InvalidCategory(t *testing.T) {
	q := validQuery("q1")
	q.Category = Category("bad")
	err := ValidateGoldenQueries([]GoldenQuery{q})
	if err == nil {
		t.Error("expected validation error for invalid category")
	}
}

func TestValidateGoldenQueries_NoExpectedFacilities(t *testing.T) {
	q := validQuery("q1")
	q.ExpectedFacilities = nil
	err := ValidateGoldenQueries([]GoldenQuery{q})
	if err == nil {
		t.Error("expected validation error for empty expected facilities")
	}
}

func TestValidateGoldenQueries_UnknownFacilityType(t *testing.T) {
	q := validQuery("q1")
	q.Filters.FacilityTypes = []entities.FacilityType{"castle"}
	err := ValidateGoldenQueries([]GoldenQuery{q})
	if err == nil {
		t.Error("expected validation error for unknown facility type")
	}
}

func TestValidateGoldenQueries_InvalidDifficulty(t *testing.T) {
	q := validQuery("q1")
	q.Difficulty = "impossible"
	err := ValidateGoldenQueries([]GoldenQuery{q})
	if err == nil {
		t.Error("expected validation error for invalid difficulty")
	}
}

func TestValidateGoldenQueries_DuplicateIDs(t *testing.T) {
	err := ValidateGoldenQueries([]GoldenQuery{validQuery("q1"), validQuery("q1")})
	if err == nil {
		t.Error("expected validation error for duplicate IDs")
	}
}

func TestValidateGoldenQueries_Valid(t *testing.T) {
	q2 := validQuery("q2")
	q2.Category = CategoryFiltered
	q2.Filters.FacilityTypes = []entities.FacilityType{entities.FacilityTypeMemoryCare}
	q2.Difficulty = "medium"
	err := ValidateGoldenQueries([]GoldenQuery{validQuery("q1"), q2})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}
