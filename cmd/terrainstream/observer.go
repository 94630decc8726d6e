package main

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"terrainstream/internal/config"
)

// scriptedObserver moves in a straight line at constant velocity from its
// start position, standing in for the player the streamer follows.
type scriptedObserver struct {
	start    mgl32.Vec3
	velocity mgl32.Vec3
	began    time.Time
}

func newScriptedObserver(cfg config.ObserverConfig, began time.Time) *scriptedObserver {
	return &scriptedObserver{
		start:    mgl32.Vec3{float32(cfg.StartX), 0, float32(cfg.StartZ)},
		velocity: mgl32.Vec3{float32(cfg.VelocityX), 0, float32(cfg.VelocityZ)},
		began:    began,
	}
}

func (o *scriptedObserver) Position(now time.Time) mgl32.Vec3 {
	elapsed := now.Sub(o.began).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return o.start.Add(o.velocity.Mul(float32(elapsed)))
}
