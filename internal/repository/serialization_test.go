package repository

import (
	"encoding/json"
	"strings"
	"testing"
)

// Row structs go straight into JSON responses, so their wire keys must be
// snake_case like the request DTOs, and secrets must never appear.
func TestRowStructWireKeys(t *testing.T) {
	raw, err := json.Marshal(Provider{
		ID:           "p1",
		CategoryID:   "c1",
		CategoryName: "Plumbing",
		BusinessName: "Acme Pipes",
		RatingAvg:    4.5,
		ReviewCount:  7,
	})
	if err != nil {
		t.Fatal(err)
	}
	body := string(raw)
	for _, key := range []string{`"category_id"`, `"business_name"`, `"rating_avg"`, `"review_count"`} {
		if !strings.Contains(body, key) {
			t.Errorf("provider JSON missing %s: %s", key, body)
		}
	}
	for _, key := range []string{`"BusinessName"`, `"RatingAvg"`} {
		if strings.Contains(body, key) {
			t.Errorf("provider JSON leaks Go field name %s: %s", key, body)
		}
	}
}

func TestFavoriteEmbedsProviderUnderKey(t *testing.T) {
	raw, err := json.Marshal(Favorite{ID: "f1", ProviderID: "p1", UserID: "u1",
		Provider: Provider{ID: "p1", BusinessName: "Acme Pipes"}})
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded["provider"]; !ok {
		t.Errorf("favorite JSON missing provider object: %s", raw)
	}
}

func TestUserJSONOmitsPasswordHash(t *testing.T) {
	raw, err := json.Marshal(User{
		ID:           "u1",
		Email:        "ana@example.com",
		PasswordHash: "$2a$10$secret",
		FullName:     "Ana Pereira",
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "secret") || strings.Contains(string(raw), "PasswordHash") {
		t.Errorf("user JSON leaks the password hash: %s", raw)
	}
}
