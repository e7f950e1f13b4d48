package api

import (
	"document-generator-service/pkg/validation"
)

var documentRequestSchema = validation.MustCompile("document_request.json", `{
	"type": "object",
	"properties": {
		"nombre": {"type": "string", "minLength": 1, "maxLength": 100},
		"placa": {"type": "string", "minLength": 1, "maxLength": 10},
		"entidad": {"type": "integer"},
		"formato": {"enum": ["txt", "docx", "xlsx"]}
	},
	"required": ["nombre", "placa", "entidad", "formato"]
}`)

var taskRequestSchema = validation.MustCompile("task_request.json", `{
	"type": "object",
	"properties": {
		"documento": {"type": "integer", "minimum": 1},
		"intervalo": {"type": ["integer", "null"], "minimum": 0},
		"periodicidad_dias": {"type": ["integer", "null"], "minimum": 0}
	},
	"required": ["documento"]
}`)

var intervalRequestSchema = validation.MustCompile("interval_request.json", `{
	"type": "object",
	"properties": {
		"documento": {"type": "integer", "minimum": 1},
		"intervalo": {"type": ["integer", "null"], "minimum": 1}
	},
	"required": ["documento"]
}`)

var sequenceRequestSchema = validation.MustCompile("sequence_request.json", `{
	"type": "object",
	"properties": {
		"documento": {"type": "integer", "minimum": 1},
		"orden": {"type": "integer", "minimum": 1},
		"dias_desde_anterior": {"type": "integer", "minimum": 1},
		"completado": {"type": "boolean"}
	},
	"required": ["documento", "orden", "dias_desde_anterior"]
}`)
