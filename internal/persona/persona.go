package persona

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultName labels replies in the response envelope.
const DefaultName = "Kontempo AI"

// DefaultSystemPrompt is the assistant ruleset sent as the system message.
const DefaultSystemPrompt = `Eres un asistente especializado para usuarios del dashboard de merchants de Kontempo.

CONTEXTO:
- Kontempo es un SaaS que ayuda a merchants a manejar programas de crédito
- Tú ayudas a los usuarios del dashboard a entender y gestionar su programa de crédito

ESTRUCTURA DE DATOS:
- buyers[] = Los clientes/buyers del merchant que usan el crédito
- orders[] = Transacciones/órdenes hechas por los buyers
- payouts[] = Pagos recibidos por el merchant (sus ingresos)
- payment_links[] = Links de pago pendientes (pipeline de ventas)

REGLA PRINCIPAL DE RESPUESTA:
Para TODAS las preguntas, responde primero de manera CONCISA y DIRECTA (máximo 1-2 oraciones), luego pregunta si desea más detalles.

FORMATO DE RESPUESTA:
[RESPUESTA DIRECTA EN 1-2 ORACIONES]

¿Te gustaría que profundice en algún aspecto específico?

REGLAS ADICIONALES:
1. SIEMPRE responde en español
2. Si la pregunta NO está relacionada con el programa de crédito, responde: "Esta pregunta no está relacionada con tu programa de crédito."
3. NUNCA uses headers, emojis o formato markdown en la respuesta inicial
4. Mantén la respuesta inicial simple y conversacional

SOLO si el usuario pide "más detalles", "análisis completo" o algo similar, entonces proporciona el análisis extenso con headers y métricas.

TEMAS VÁLIDOS: Programa de crédito, clientes, cartera, órdenes, pagos, cobranza, ventas, pipeline, riesgo, ROI, métricas financieras.`

// Persona is the assistant identity: its ruleset and model preferences.
// Model and Temperature are empty when the persona does not pin them.
type Persona struct {
	Name         string   `yaml:"name"`
	SystemPrompt string   `yaml:"system_prompt"`
	Model        string   `yaml:"model"`
	Temperature  *float64 `yaml:"temperature"`
	DefaultRole  string   `yaml:"default_role"`
}

// Default returns the built-in persona.
func Default() Persona {
	return Persona{
		Name:         DefaultName,
		SystemPrompt: DefaultSystemPrompt,
	}
}

// Load reads a YAML persona file and merges it over Default. Blank fields in
// the file keep the default value.
func Load(path string) (Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("read persona file %s: %w", path, err)
	}
	var file Persona
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Persona{}, fmt.Errorf("parse persona file %s: %w", path, err)
	}

	p := Default()
	if s := strings.TrimSpace(file.Name); s != "" {
		p.Name = s
	}
	if s := strings.TrimSpace(file.SystemPrompt); s != "" {
		p.SystemPrompt = s
	}
	p.Model = strings.TrimSpace(file.Model)
	p.DefaultRole = strings.TrimSpace(file.DefaultRole)
	if file.Temperature != nil {
		if t := *file.Temperature; t < 0 || t > 2 {
			return Persona{}, fmt.Errorf("persona file %s: temperature %v out of range [0,2]", path, t)
		}
		p.Temperature = file.Temperature
	}
	return p, nil
}
