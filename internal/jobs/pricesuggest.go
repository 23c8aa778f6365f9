package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"bookshop/internal/domain"
	"bookshop/internal/pkg/logger"
)

// Timeout de uma execução completa da varredura.
const sweepTimeout = 5 * time.Minute

// PriceSuggestionJob agenda a varredura semanal de anúncios parados:
// livros PUBLISHED há mais de N dias cujos donos recebem uma sugestão
// de redução de preço por e-mail.
type PriceSuggestionJob struct {
	service domain.BookService
	cron    *cron.Cron
	spec    string // expressão cron (e.g., "0 9 * * 1" = segundas às 9h)
	daysOld int
	logger  logger.Logger
}

// NewPriceSuggestionJob cria o job com o agendamento e o limiar configurados.
func NewPriceSuggestionJob(svc domain.BookService, spec string, daysOld int, log logger.Logger) *PriceSuggestionJob {
	return &PriceSuggestionJob{
		service: svc,
		cron:    cron.New(),
		spec:    spec,
		daysOld: daysOld,
		logger:  log,
	}
}

// Start registra a varredura no agendador e o coloca em execução.
func (j *PriceSuggestionJob) Start() error {
	if _, err := j.cron.AddFunc(j.spec, j.run); err != nil {
		return err
	}

	j.cron.Start()
	j.logger.Info("Cron de sugestão de preços configurado.", map[string]interface{}{
		"spec":     j.spec,
		"days_old": j.daysOld,
	})
	return nil
}

// Stop interrompe o agendador e aguarda a execução em andamento terminar.
func (j *PriceSuggestionJob) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Info("Cron de sugestão de preços encerrado.", nil)
}

// run executa uma varredura completa.
func (j *PriceSuggestionJob) run() {
	j.logger.Info("Executando varredura de sugestão de preços.", map[string]interface{}{"days_old": j.daysOld})

	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	result, err := j.service.SuggestPriceReductions(ctx, j.daysOld)
	if err != nil {
		j.logger.Error("Varredura de sugestão de preços falhou.", err)
		return
	}

	j.logger.Info("Varredura de sugestão de preços concluída.", map[string]interface{}{
		"processed": result.ProcessedBooks,
		"sent":      result.EmailsSent,
		"failed":    result.EmailsFailed,
	})
}
