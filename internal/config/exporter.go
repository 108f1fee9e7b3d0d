package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	ExporterTypeUptimeKuma = "uptime-kuma"
)

// ExporterConfig describes one push target notified after every batch.
// Users restricts the exporter to batches run for those user ids; empty
// means every batch.
type ExporterConfig struct {
	Type       string   `mapstructure:"type" json:"type" validate:"required,exporterType"`
	MonitorURL string   `mapstructure:"monitor_url" json:"monitor_url" validate:"required,url"`
	Users      []string `mapstructure:"users" json:"users" validate:"dive,required"`
}

func init() {
	if err := validate.RegisterValidation("exporterType", validateExporterType); err != nil {
		panic(fmt.Sprintf("failed to register exporter type validator: %v", err))
	}
}

func validateExporterType(fl validator.FieldLevel) bool {
	exporterType := fl.Field().String()
	switch exporterType {
	case ExporterTypeUptimeKuma:
		return true
	default:
		return false
	}
}
