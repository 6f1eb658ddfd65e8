package models

import (
	"fmt"
	"strings"
)

// StepStatus is the workflow position of a problem step
type StepStatus string

// Step statuses
const (
	StatusDesign             StepStatus = "design"
	StatusMethod             StepStatus = "method"
	StatusPurchase           StepStatus = "purchase"
	StatusManufacturing      StepStatus = "manufacturing"
	StatusWarehouse          StepStatus = "warehouse"
	StatusShipmentAndPacking StepStatus = "shipment_and_packing"
	StatusShipment           StepStatus = "shipment"
	StatusOnTheSpotAction    StepStatus = "on_the_spot_action"
	StatusFinished           StepStatus = "finished"
	StatusCancel             StepStatus = "cancel"
	StatusWaiting            StepStatus = "waiting"
)

// InitialStepStatus is the status of the first step created for a reported component
const InitialStepStatus = StatusWaiting

var stepStatuses = []StepStatus{
	StatusDesign,
	StatusMethod,
	StatusPurchase,
	StatusManufacturing,
	StatusWarehouse,
	StatusShipmentAndPacking,
	StatusShipment,
	StatusOnTheSpotAction,
	StatusFinished,
	StatusCancel,
	StatusWaiting,
}

// StepStatuses returns the statuses in display order
func StepStatuses() []StepStatus {
	out := make([]StepStatus, len(stepStatuses))
	copy(out, stepStatuses)
	return out
}

// Valid reports whether s is one of the known statuses
func (s StepStatus) Valid() bool {
	for _, known := range stepStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Closed reports whether no further steps are expected
func (s StepStatus) Closed() bool {
	return s == StatusFinished || s == StatusCancel
}

// Label returns a human readable form, e.g. "Shipment And Packing"
func (s StepStatus) Label() string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// ParseStepStatus normalizes and validates a submitted status
func ParseStepStatus(raw string) (StepStatus, error) {
	s := StepStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown step status %q", raw)
	}
	return s, nil
}
