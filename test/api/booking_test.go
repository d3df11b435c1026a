package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"
)

// tomorrowDate keeps requests in the future so the past-time check never
// interferes with the flow under test.
func tomorrowDate() string {
	return time.Now().UTC().Add(24 * time.Hour).Format("2006-01-02")
}

func findPhysicianID(t *testing.T) string {
	t.Helper()
	resp := makeRequest("GET", "/physicians", nil, authToken)
	if !resp.IsSuccess() {
		t.Skipf("no physicians endpoint data: %s", resp.Message)
	}

	var physicians []map[string]interface{}
	if resp.RawData == "" {
		t.Skip("no physicians seeded")
	}
	if err := json.Unmarshal([]byte(resp.RawData), &physicians); err != nil || len(physicians) == 0 {
		t.Skip("no physicians seeded")
	}
	id, _ := physicians[0]["id"].(string)
	if id == "" {
		t.Skip("physician list carried no id")
	}
	return id
}

func TestHealthEndpoints(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp, err := client.Get(baseURL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: status %d", path, resp.StatusCode)
		}
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	resp := makeRequest("POST", "/auth/login", map[string]string{
		"email":    "admin@clinic.example",
		"password": "definitely wrong",
	}, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	resp := makeRequest("GET", "/appointments", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestBookingFlow(t *testing.T) {
	physicianID := findPhysicianID(t)
	date := tomorrowDate()

	avail := makeRequest("GET", fmt.Sprintf("/availability?physician_id=%s&date=%s", physicianID, date), nil, authToken)
	if !avail.IsSuccess() {
		t.Fatalf("availability failed: %s", avail.Message)
	}

	create := makeRequest("POST", "/appointments", map[string]interface{}{
		"physician_id": physicianID,
		"date":         date,
		"time":         "09:00",
		"patient_name": "Paciente Fumaça",
		"patient_cpf":  uniqueCPF(),
	}, authToken)
	if create.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", create.StatusCode, create.Message)
	}

	appointmentID := create.GetString("id")
	if appointmentID == "" {
		t.Fatal("created appointment carried no id")
	}

	// The same minute with a different patient must now conflict.
	dup := makeRequest("POST", "/appointments", map[string]interface{}{
		"physician_id": physicianID,
		"date":         date,
		"time":         "09:00",
		"patient_name": "Outro Paciente",
		"patient_cpf":  uniqueCPF(),
	}, authToken)
	if dup.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for occupied slot, got %d", dup.StatusCode)
	}

	cancel := makeRequest("DELETE", "/appointments/"+appointmentID, nil, authToken)
	if cancel.StatusCode != http.StatusOK {
		t.Fatalf("cancel failed with %d: %s", cancel.StatusCode, cancel.Message)
	}

	// Cancelled frees the slot.
	rebook := makeRequest("POST", "/appointments", map[string]interface{}{
		"physician_id": physicianID,
		"date":         date,
		"time":         "09:00",
		"patient_name": "Terceiro Paciente",
		"patient_cpf":  uniqueCPF(),
	}, authToken)
	if rebook.StatusCode != http.StatusCreated {
		t.Errorf("expected 201 after cancel, got %d: %s", rebook.StatusCode, rebook.Message)
	}

	if id := rebook.GetString("id"); id != "" {
		makeRequest("DELETE", "/appointments/"+id, nil, authToken)
	}
}

func TestBookingRejectsPastDate(t *testing.T) {
	physicianID := findPhysicianID(t)

	resp := makeRequest("POST", "/appointments", map[string]interface{}{
		"physician_id": physicianID,
		"date":         "2020-01-01",
		"time":         "09:00",
		"patient_name": "Paciente Atrasado",
		"patient_cpf":  uniqueCPF(),
	}, authToken)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for past date, got %d", resp.StatusCode)
	}
}
