package simdriver

import (
	"context"
	"testing"
)

func TestAcceleratesTowardCommandedThrottle(t *testing.T) {
	d := New(0, 0, 1)
	if err := d.SetActuators(context.Background(), 100, 0); err != nil {
		t.Fatalf("SetActuators: %v", err)
	}

	for i := 0; i < 10; i++ {
		d.step(context.Background())
	}

	frame, err := d.ReadSensorData(context.Background(), 0)
	if err != nil {
		t.Fatalf("ReadSensorData: %v", err)
	}
	if frame.Speed <= 0 {
		t.Fatalf("Speed = %d, want > 0 after full-throttle acceleration", frame.Speed)
	}
	if frame.X <= 0 {
		t.Fatalf("X = %d, want > 0 after moving east at heading 0", frame.X)
	}
}

func TestHeadingTurnsTowardCommandGradually(t *testing.T) {
	d := New(0, 0, 1)
	d.SetActuators(context.Background(), 0, 90)

	d.step(context.Background())
	frame, _ := d.ReadSensorData(context.Background(), 0)
	if frame.Heading <= 0 || frame.Heading >= 90 {
		t.Fatalf("Heading after one step = %d, want strictly between 0 and 90 (rate-limited turn)", frame.Heading)
	}
}

func TestTemperatureRisesWithSustainedSpeed(t *testing.T) {
	d := New(0, 0, 1)
	d.SetActuators(context.Background(), 100, 0)

	first, _ := d.ReadSensorData(context.Background(), 0)
	for i := 0; i < 200; i++ {
		d.step(context.Background())
	}
	last, _ := d.ReadSensorData(context.Background(), 0)

	if last.Temperature <= first.Temperature {
		t.Fatalf("Temperature did not rise: first=%d last=%d", first.Temperature, last.Temperature)
	}
}

func TestInjectedFaultsSurfaceInSensorFrame(t *testing.T) {
	d := New(0, 0, 1)
	d.InjectElectricalFault(true)
	d.InjectHydraulicFault(true)
	d.SetObstacleDistance(3.5)

	frame, _ := d.ReadSensorData(context.Background(), 0)
	if !frame.ElectricalFault || !frame.HydraulicFault {
		t.Fatalf("frame = %+v, want both fault flags set", frame)
	}
	if frame.LidarDistance != 3.5 {
		t.Fatalf("LidarDistance = %v, want 3.5", frame.LidarDistance)
	}
}

func TestPublishSystemStateRecordsSummary(t *testing.T) {
	d := New(0, 0, 1)
	if err := d.PublishSystemState(context.Background(), true, false); err != nil {
		t.Fatalf("PublishSystemState: %v", err)
	}
	if !d.manual || d.fault {
		t.Fatalf("manual=%v fault=%v, want manual=true fault=false", d.manual, d.fault)
	}
}
