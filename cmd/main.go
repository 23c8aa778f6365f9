package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	// Nossos pacotes de infraestrutura e utilitários
	"bookshop/config"
	"bookshop/internal/pkg/cache"
	"bookshop/internal/pkg/database"
	"bookshop/internal/pkg/logger"
	"bookshop/internal/pkg/mailer"
	"bookshop/internal/pkg/token"

	// Camadas do domínio para Injeção de Dependências
	"bookshop/internal/api/book" // Handlers
	"bookshop/internal/api/router"
	"bookshop/internal/api/user"
	"bookshop/internal/jobs"                // Job agendado de sugestão de preço
	"bookshop/internal/repository/bookrepo" // Acesso a Dados
	"bookshop/internal/repository/userrepo"
	"bookshop/internal/service/bookservice" // Lógica de Negócio
	"bookshop/internal/service/userservice"
)

func main() {
	// 1. Configuração e Inicialização
	log.Println("⚡ Inicializando serviço BookShop...")
	// 0. CARREGAR VARIÁVEIS DE AMBIENTE (.env)
	// O godotenv.Load() procura por um arquivo chamado .env na raiz.
	if err := godotenv.Load(); err != nil {
		// Se o arquivo .env não for encontrado (ou houver erro de leitura),
		// avisamos, mas continuamos, pois as variáveis essenciais podem
		// estar no ambiente do sistema (ex: Docker).
		log.Println("⚠️ Aviso: Arquivo .env não encontrado ou erro de leitura. Carregando configs apenas do ambiente do sistema.")
	}

	cfg := config.LoadConfig() // Carrega as configurações (URLs, Timeouts, etc.)
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("Configurações carregadas.", nil)

	// 2. Conexão com Recursos de Infraestrutura

	// A. Banco de Dados (PostgreSQL)
	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Falha ao conectar ao banco de dados.", err)
	}
	defer db.Close() // Fecha a conexão de DB ao sair
	log.Info("Conexão PostgreSQL estabelecida.", nil)

	// B. Cache (Redis)
	cacheClient := cache.NewRedisClient(cfg.RedisAddr)
	log.Info("Conexão Redis estabelecida.", nil)

	// C. Mailer (SMTP) — notificações de venda e de sugestão de preço
	mailSvc := mailer.NewSMTPMailer(cfg.EmailHost, cfg.EmailPort, cfg.EmailUser, cfg.EmailPass, cfg.EmailFrom, log)
	log.Debug("Mailer SMTP inicializado.", nil)

	// D. Serviço de Tokens (JWT)
	tokenSvc := token.NewService(cfg.JWTSecretKey, cfg.TokenExpiry)
	log.Debug("Serviço de Tokens JWT inicializado.", nil)

	// 3. INJEÇÃO DE DEPENDÊNCIAS (Montagem da Clean Architecture)
	// Ordem: Repository -> Service -> Handler

	// A. Repositórios (Camada de Acesso a Dados)
	// Recebem as conexões de Infraestrutura
	userRepo := userrepo.NewUserRepository(db, cfg.DBTimeout, log)
	bookRepo := bookrepo.NewBookRepository(db, cacheClient, cfg.DBTimeout, log)
	log.Debug("Repositórios inicializados.", nil)

	// B. Serviços (Camada de Lógica de Negócio)
	// Recebem os Repositórios (as interfaces do pacote domain)
	userSvc := userservice.NewService(userRepo, tokenSvc, log)
	bookSvc := bookservice.NewService(bookRepo, userRepo, mailSvc, log)
	log.Debug("Serviços inicializados.", nil)

	// C. Handlers (Camada de Apresentação)
	// Recebem os Serviços (as interfaces domain.BookService / domain.UserService)
	userHandler := user.NewHandler(userSvc, log)
	bookHandler := book.NewHandler(bookSvc, log)
	log.Debug("Handlers inicializados.", nil)

	// 4. Job Agendado (sugestão de redução de preço para anúncios parados)
	priceJob := jobs.NewPriceSuggestionJob(bookSvc, cfg.PriceSuggestionCron, cfg.StaleBookDays, log)
	if err := priceJob.Start(); err != nil {
		log.Fatal("Falha ao agendar job de sugestão de preço.", err)
	}
	defer priceJob.Stop()
	log.Info("Job de sugestão de preço agendado.", map[string]interface{}{"cron": cfg.PriceSuggestionCron})

	// 5. Configuração e Início do Roteador/Servidor

	// O roteador recebe os Handlers e aplica os middlewares (auth, rate limit)
	r := router.NewRouter(bookHandler, userHandler, tokenSvc, cacheClient, cfg.RateLimitMaxRequests, cfg.RateLimitPeriod)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r, // O roteador final
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 6. Execução e Graceful Shutdown
	go func() {
		log.Info("Servidor BookShop ouvindo na porta", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Servidor falhou: %v", err)
		}
	}()

	// Lógica do Graceful Shutdown (captura de sinal)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Sinal de encerramento recebido. Desligando servidor...", nil)

	// Timeout para desligamento (usa o contexto)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Desligamento do servidor forçado.", err)
	}

	log.Info("Servidor encerrado com sucesso.", nil)
}
