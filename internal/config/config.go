package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config contiene la configuración del proceso
type Config struct {
	DBHost     string // Host de la base de datos
	DBPort     string // Puerto de la base de datos
	DBUser     string // Usuario de la base de datos
	DBPassword string // Contraseña de la base de datos
	DBName     string // Nombre de la base de datos

	HTTPAddr      string // Dirección del endpoint de salud
	SchedulerSpec string // Periodicidad del planificador (formato cron / @every)

	AMQPURL       string // URL de RabbitMQ para auditoría (vacío = solo logs)
	AuditExchange string // Exchange de auditoría
}

// LoadConfig carga la configuración desde el archivo .env
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("Archivo .env no encontrado")
	}

	config := &Config{
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "banca_core"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		SchedulerSpec: getEnv("SCHEDULER_SPEC", "@every 1m"),
		AMQPURL:       getEnv("AMQP_URL", ""),
		AuditExchange: getEnv("AUDIT_EXCHANGE", "banca.auditoria"),
	}

	return config, nil
}

// getEnv obtiene el valor de una variable de entorno o el valor por defecto
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
