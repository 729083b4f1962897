package health

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleExport = `<?xml version="1.0" encoding="UTF-8"?>
<HealthData locale="en_FI">
 <ExportDate value="2023-10-15 09:00:00 +0300"/>
 <Record type="HKQuantityTypeIdentifierHeartRate" sourceName="Watch" unit="count/min" startDate="2023-10-14 07:30:02 +0300" endDate="2023-10-14 07:30:02 +0300" value="128"/>
 <Record type="HKQuantityTypeIdentifierStepCount" sourceName="Watch" unit="count" startDate="2023-10-14 07:30:02 +0300" endDate="2023-10-14 07:30:10 +0300" value="14"/>
 <Record type="HKQuantityTypeIdentifierHeartRate" sourceName="Watch" unit="count/min" startDate="2023-10-14 07:30:07 +0300" endDate="2023-10-14 07:30:07 +0300" value="131.5">
  <MetadataEntry key="HKMetadataKeyHeartRateMotionContext" value="2"/>
 </Record>
 <Workout workoutActivityType="HKWorkoutActivityTypeRunning" duration="30" durationUnit="min" totalDistance="5.2" totalDistanceUnit="km" totalEnergyBurned="350" totalEnergyBurnedUnit="kcal" startDate="2023-10-14 07:30:00 +0300" endDate="2023-10-14 08:00:00 +0300">
  <MetadataEntry key="HKIndoorWorkout" value="0"/>
 </Workout>
</HealthData>`

func TestParseExport(t *testing.T) {
	data, err := parseExport(strings.NewReader(sampleExport))
	if err != nil {
		t.Fatalf("parseExport: %v", err)
	}

	if len(data.Samples) != 2 {
		t.Fatalf("got %d heart rate samples, want 2 (step count must be skipped)", len(data.Samples))
	}
	first := data.Samples[0]
	wantTime := time.Date(2023, 10, 14, 4, 30, 2, 0, time.UTC)
	if !first.Time.Equal(wantTime) {
		t.Errorf("sample time = %v, want %v", first.Time, wantTime)
	}
	if first.BPM != 128 {
		t.Errorf("sample bpm = %d, want 128", first.BPM)
	}
	// 131.5 rounds up.
	if data.Samples[1].BPM != 132 {
		t.Errorf("fractional bpm = %d, want 132", data.Samples[1].BPM)
	}

	if len(data.Workouts) != 1 {
		t.Fatalf("got %d workouts, want 1", len(data.Workouts))
	}
	w := data.Workouts[0]
	if w.ActivityType != "HKWorkoutActivityTypeRunning" {
		t.Errorf("activity type = %q", w.ActivityType)
	}
	if w.TotalDistance != 5200 {
		t.Errorf("total distance = %v m, want 5200 (5.2 km)", w.TotalDistance)
	}
	if w.TotalEnergyBurned != 350 {
		t.Errorf("energy burned = %v kcal, want 350", w.TotalEnergyBurned)
	}
	wantStart := time.Date(2023, 10, 14, 4, 30, 0, 0, time.UTC)
	if !w.Start.Equal(wantStart) {
		t.Errorf("workout start = %v, want %v", w.Start, wantStart)
	}
	if got := w.End.Sub(w.Start); got != 30*time.Minute {
		t.Errorf("workout window = %v, want 30m", got)
	}
}

func TestParseExportRFC3339Timestamps(t *testing.T) {
	doc := `<HealthData>
 <Record type="HKQuantityTypeIdentifierHeartRate" startDate="2023-10-14T04:30:02Z" value="90"/>
</HealthData>`

	data, err := parseExport(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parseExport: %v", err)
	}
	want := time.Date(2023, 10, 14, 4, 30, 2, 0, time.UTC)
	if !data.Samples[0].Time.Equal(want) {
		t.Errorf("sample time = %v, want %v", data.Samples[0].Time, want)
	}
}

func TestParseExportBadHeartRateValue(t *testing.T) {
	doc := `<HealthData>
 <Record type="HKQuantityTypeIdentifierHeartRate" startDate="2023-10-14 07:30:02 +0300" value="128"/>
 <Record type="HKQuantityTypeIdentifierHeartRate" startDate="2023-10-14 07:30:07 +0300" value="fast"/>
</HealthData>`

	_, err := parseExport(strings.NewReader(doc))
	if err == nil {
		t.Fatal("expected error for non-numeric heart rate")
	}
	if !strings.Contains(err.Error(), "record 2") {
		t.Errorf("error %q does not name the offending record", err)
	}
}

func TestParseExportNonPositiveHeartRate(t *testing.T) {
	doc := `<HealthData>
 <Record type="HKQuantityTypeIdentifierHeartRate" startDate="2023-10-14 07:30:02 +0300" value="0"/>
</HealthData>`

	if _, err := parseExport(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for zero bpm")
	}
}

func TestParseExportBadWorkoutTimestamp(t *testing.T) {
	doc := `<HealthData>
 <Workout workoutActivityType="HKWorkoutActivityTypeRunning" startDate="next tuesday" endDate="2023-10-14 08:00:00 +0300"/>
</HealthData>`

	_, err := parseExport(strings.NewReader(doc))
	if err == nil {
		t.Fatal("expected error for unparseable workout timestamp")
	}
	if !strings.Contains(err.Error(), "workout 1") {
		t.Errorf("error %q does not name the offending workout", err)
	}
}

func TestParseFileWrapsPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.xml")
	if err := os.WriteFile(path, []byte(`<HealthData><Record type="HKQuantityTypeIdentifierHeartRate" startDate="bogus" value="90"/></HealthData>`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := ParseFile(path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "export.xml") {
		t.Errorf("error %q does not name the file", err)
	}
}

func TestParseDirMergesFiles(t *testing.T) {
	dir := t.TempDir()
	one := `<HealthData>
 <Record type="HKQuantityTypeIdentifierHeartRate" startDate="2023-10-14 07:30:02 +0300" value="128"/>
</HealthData>`
	two := `<HealthData>
 <Record type="HKQuantityTypeIdentifierHeartRate" startDate="2023-10-14 07:29:00 +0300" value="115"/>
 <Workout workoutActivityType="HKWorkoutActivityTypeWalking" startDate="2023-10-14 07:00:00 +0300" endDate="2023-10-14 08:00:00 +0300"/>
</HealthData>`
	if err := os.WriteFile(filepath.Join(dir, "export1.xml"), []byte(one), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "export2.xml"), []byte(two), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := ParseDir(dir)
	if err != nil {
		t.Fatalf("ParseDir: %v", err)
	}
	if len(data.Samples) != 2 {
		t.Errorf("got %d samples, want 2", len(data.Samples))
	}
	if len(data.Workouts) != 1 {
		t.Errorf("got %d workouts, want 1", len(data.Workouts))
	}
}

func TestParseDirEmpty(t *testing.T) {
	if _, err := ParseDir(t.TempDir()); err == nil {
		t.Fatal("expected error for directory without xml files")
	}
}

func TestFindWorkout(t *testing.T) {
	data, err := parseExport(strings.NewReader(sampleExport))
	if err != nil {
		t.Fatalf("parseExport: %v", err)
	}

	inside := time.Date(2023, 10, 14, 4, 45, 0, 0, time.UTC)
	w := data.FindWorkout(inside)
	if w == nil {
		t.Fatal("expected a workout for a time inside its window")
	}
	if w.ActivityType != "HKWorkoutActivityTypeRunning" {
		t.Errorf("matched workout %q", w.ActivityType)
	}

	// Window bounds are inclusive.
	if data.FindWorkout(w.Start) == nil || data.FindWorkout(w.End) == nil {
		t.Error("window bounds must match")
	}

	outside := time.Date(2023, 10, 14, 10, 0, 0, 0, time.UTC)
	if got := data.FindWorkout(outside); got != nil {
		t.Errorf("expected nil for a time outside every window, got %+v", got)
	}
}
