package main

import (
	"log"

	_ "gw-settlement-guard/docs"
	"gw-settlement-guard/internal/app"
)

// @title           Settlement Guard API
// @version         1.0
// @description     API контроля экспозиции расчетов: агрегация итогов по группам, лимиты и согласование релиза

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app, err := app.NewApp()
	if err != nil {
		log.Fatalf("Ошибка создания приложения: %v", err)
	}

	app.BuildRatesLayer()
	if err := app.BuildExposureLayer(); err != nil {
		log.Fatalf("Ошибка сборки слоя exposure: %v", err)
	}
	if err := app.BuildWorkflowLayer(); err != nil {
		log.Fatalf("Ошибка сборки слоя workflow: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("Ошибка при работе приложения: %v", err)
	}
}
