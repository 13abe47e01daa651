package utils

import (
	"testing"

	"github.com/cutekitten000/backlog/models"
)

func validGame() models.NewGameInput {
	return models.NewGameInput{
		APIGameID: 101,
		Title:     "Hades",
		Status:    models.StatusPlaying,
		Platforms: []models.Platform{models.PlatformSteam},
	}
}

func TestValidateNewGameAccepts(t *testing.T) {
	if err := ValidateStruct(validGame()); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
}

func TestValidateNewGameRejectsUnknownStatusAndPlatform(t *testing.T) {
	in := validGame()
	in.Status = "Sleeping"
	in.Platforms = []models.Platform{"Dreamcast"}
	err := ValidateStruct(in)
	if err == nil {
		t.Fatal("expected validation error")
	}
	fields := ValidationErrors(err)
	if _, ok := fields["NewGameInput.Status"]; !ok {
		t.Fatalf("missing status error: %v", fields)
	}
	if _, ok := fields["NewGameInput.Platforms[0]"]; !ok {
		t.Fatalf("missing platform error: %v", fields)
	}
}

func TestValidateNewGameRequiresPlatforms(t *testing.T) {
	in := validGame()
	in.Platforms = nil
	if err := ValidateStruct(in); err == nil {
		t.Fatal("expected error for empty platforms")
	}
	in.Platforms = []models.Platform{models.PlatformSteam, models.PlatformSteam}
	if err := ValidateStruct(in); err == nil {
		t.Fatal("expected error for duplicate platforms")
	}
}

func TestValidateDlcStatusExcludesPlatinum(t *testing.T) {
	in := models.NewDlcInput{Title: "Blood and Wine", Status: models.StatusPlatinum}
	if err := ValidateStruct(in); err == nil {
		t.Fatal("platinum is not a DLC status")
	}
	in.Status = ""
	if err := ValidateStruct(in); err != nil {
		t.Fatalf("empty status should default later, got %v", err)
	}
}

func TestValidateUpdateGameAllowsPartial(t *testing.T) {
	dropped := models.StatusDropped
	if err := ValidateStruct(models.UpdateGameInput{Status: &dropped}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	negative := -1
	if err := ValidateStruct(models.UpdateGameInput{AchievementsGotten: &negative}); err == nil {
		t.Fatal("expected error for negative achievements")
	}
}

func TestValidationErrorsIgnoresOtherErrors(t *testing.T) {
	if ValidationErrors(nil) != nil {
		t.Fatal("nil error should give nil map")
	}
}
