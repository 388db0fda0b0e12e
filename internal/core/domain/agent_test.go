package domain

import "testing"

func TestAgentRoles(t *testing.T) {
	roles := AllAgentRoles()
	if len(roles) != 6 {
		t.Fatalf("expected 6 roles, got %d", len(roles))
	}
	for _, role := range roles {
		if !role.IsValid() {
			t.Errorf("expected %s to be valid", role)
		}
		if role.SystemPrompt() == "" {
			t.Errorf("expected %s to have a system prompt", role)
		}
		if len(role.Keywords()) == 0 {
			t.Errorf("expected %s to have keywords", role)
		}
	}
	if AgentRole("soil_wizard").IsValid() {
		t.Error("expected unknown role to be invalid")
	}
}

func TestAgentRole_DisplayName(t *testing.T) {
	tests := map[AgentRole]string{
		AgentRoleCropSpecialist:    "Crop Specialist",
		AgentRoleClimateResearcher: "Climate Researcher",
		AgentRole("x"):             "X",
	}
	for role, want := range tests {
		if got := role.DisplayName(); got != want {
			t.Errorf("DisplayName(%s) = %q, want %q", role, got, want)
		}
	}
}

func TestMergeMode_IsValid(t *testing.T) {
	if !MergeModeDetailed.IsValid() || !MergeModeConcise.IsValid() {
		t.Error("expected known modes to be valid")
	}
	if MergeMode("verbose").IsValid() {
		t.Error("expected unknown mode to be invalid")
	}
}
