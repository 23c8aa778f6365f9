package bookservice

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookshop/internal/domain"
	apperror "bookshop/internal/errors"
	"bookshop/internal/pkg/logger"
	"bookshop/internal/pkg/mailer"
)

// Limite máximo de itens por página na listagem pública.
const MaxPageLimit = 100

// Timeout próprio das notificações disparadas em background, já que elas
// não podem ficar presas ao contexto da requisição que as originou.
const notifyTimeout = 10 * time.Second

// Service implementa a interface domain.BookService: as regras de negócio do
// ciclo de vida do livro (publicar, atualizar, remover, comprar, listar e
// sugerir redução de preço).
type Service struct {
	repo     domain.BookRepository
	userRepo domain.UserRepository
	mailer   mailer.Mailer
	logger   logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Livros.
func NewService(repo domain.BookRepository, userRepo domain.UserRepository, m mailer.Mailer, log logger.Logger) *Service {
	return &Service{
		repo:     repo,
		userRepo: userRepo,
		mailer:   m,
		logger:   log,
	}
}

// CreateBook publica um novo livro no marketplace.
// Todo livro nasce com status PUBLISHED e sem data de venda.
func (s *Service) CreateBook(ctx context.Context, payload domain.BookCreate) (domain.Book, error) {
	s.logger.Debug("Iniciando criação de livro no serviço.", map[string]interface{}{"title": payload.Title, "owner_id": payload.OwnerID})

	// 1. Validação de Regras de Negócio
	if err := validateTitle(payload.Title); err != nil {
		return domain.Book{}, err
	}
	if err := validateDescription(payload.Description); err != nil {
		return domain.Book{}, err
	}
	if err := validateAuthor(payload.Author); err != nil {
		return domain.Book{}, err
	}
	if err := validatePrice(payload.Price); err != nil {
		return domain.Book{}, err
	}

	// 2. Montagem da Entidade
	now := time.Now().UTC()
	book := domain.Book{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(payload.Title),
		Description: strings.TrimSpace(payload.Description),
		Price:       payload.Price,
		Author:      strings.TrimSpace(payload.Author),
		Status:      domain.StatusPublished,
		OwnerID:     payload.OwnerID,
		SoldAt:      nil,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// 3. Delegação para a Camada de Persistência
	created, err := s.repo.Save(ctx, book)
	if err != nil {
		s.logger.Error("Falha ao salvar livro no repositório.", err)
		return domain.Book{}, err
	}

	s.logger.Info("Livro publicado com sucesso.", map[string]interface{}{"book_id": created.ID, "owner_id": created.OwnerID})
	return created, nil
}

// GetBookByID busca um livro publicado pelo ID.
// Um livro inexistente resulta em NotFound; um livro existente mas já vendido
// resulta em NotAvailable (o contrato distingue os dois casos).
func (s *Service) GetBookByID(ctx context.Context, id string) (domain.Book, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Book{}, apperror.NewValidationError("O ID do livro deve ser um UUID válido.")
	}

	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Book{}, err // Erros do repositório já são NotFoundError ou DBError
	}

	// Regra de negócio: só livros publicados são visíveis por este caminho.
	if book.Status != domain.StatusPublished {
		return domain.Book{}, apperror.NewNotAvailableError("O livro já foi vendido e não está mais disponível.")
	}

	return book, nil
}

// GetAllBooks lista livros publicados com paginação e filtros opcionais de
// igualdade exata por autor e/ou título.
func (s *Service) GetAllBooks(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	// Validação de paginação: valores fora da faixa são rejeitados,
	// não ajustados silenciosamente.
	if filter.Page <= 0 {
		return nil, apperror.NewValidationError("page deve ser um número positivo.")
	}
	if filter.Limit <= 0 {
		return nil, apperror.NewValidationError("limit deve ser um número positivo.")
	}
	if filter.Limit > MaxPageLimit {
		return nil, apperror.NewValidationError("limit não pode exceder 100.")
	}

	books, err := s.repo.FindPaginatedFiltered(ctx, filter)
	if err != nil {
		s.logger.Error("Falha ao listar livros no repositório.", err)
		return nil, err
	}

	return books, nil
}

// GetMyBooks lista todos os livros do usuário solicitante,
// incluindo os já vendidos.
func (s *Service) GetMyBooks(ctx context.Context, ownerID string) ([]domain.Book, error) {
	books, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		s.logger.Error("Falha ao listar livros do dono no repositório.", err)
		return nil, err
	}
	return books, nil
}

// UpdateBook aplica um patch parcial sobre um anúncio do próprio dono.
// Campos omitidos (nil) são deixados inalterados; status e sold_at nunca
// passam por este caminho.
func (s *Service) UpdateBook(ctx context.Context, id string, requesterID string, update domain.BookUpdate) (domain.Book, error) {
	s.logger.Debug("Iniciando atualização de livro no serviço.", map[string]interface{}{"book_id": id, "requester_id": requesterID})

	// 1. Buscar o livro atual
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Book{}, err
	}

	// 2. Autorização: apenas o dono pode alterar o anúncio
	if err := s.authorizeOwner(book, requesterID); err != nil {
		return domain.Book{}, err
	}

	// 3. Validação dos campos fornecidos
	if update.Title != nil {
		if err := validateTitle(*update.Title); err != nil {
			return domain.Book{}, err
		}
		book.Title = strings.TrimSpace(*update.Title)
	}
	if update.Description != nil {
		if err := validateDescription(*update.Description); err != nil {
			return domain.Book{}, err
		}
		book.Description = strings.TrimSpace(*update.Description)
	}
	if update.Author != nil {
		if err := validateAuthor(*update.Author); err != nil {
			return domain.Book{}, err
		}
		book.Author = strings.TrimSpace(*update.Author)
	}
	if update.Price != nil {
		if err := validatePrice(*update.Price); err != nil {
			return domain.Book{}, err
		}
		book.Price = *update.Price
	}

	// 4. Persistência do registro mesclado
	updated, err := s.repo.Update(ctx, book)
	if err != nil {
		s.logger.Error("Falha ao atualizar livro no repositório.", err)
		return domain.Book{}, err
	}

	s.logger.Info("Livro atualizado com sucesso.", map[string]interface{}{"book_id": updated.ID})
	return updated, nil
}

// DeleteBook remove um anúncio do próprio dono e retorna o registro removido.
// Uma segunda chamada para o mesmo ID resulta em NotFound.
func (s *Service) DeleteBook(ctx context.Context, id string, requesterID string) (domain.Book, error) {
	s.logger.Debug("Iniciando remoção de livro no serviço.", map[string]interface{}{"book_id": id, "requester_id": requesterID})

	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Book{}, err
	}

	if err := s.authorizeOwner(book, requesterID); err != nil {
		return domain.Book{}, err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("Falha ao deletar livro no repositório.", err)
		return domain.Book{}, err
	}

	s.logger.Info("Livro removido com sucesso.", map[string]interface{}{"book_id": id})
	return book, nil
}

// BuyBook executa a única transição de estado do ciclo de vida:
// PUBLISHED -> SOLD, exatamente uma vez por livro.
//
// A escrita é condicional no banco (WHERE status = PUBLISHED), então duas
// compras concorrentes sobre o mesmo livro nunca vendem duas vezes: a que
// chegar depois não afeta nenhuma linha e recebe o mesmo erro de negócio
// de um livro já vendido.
func (s *Service) BuyBook(ctx context.Context, id string, buyerID string) (domain.Book, error) {
	s.logger.Debug("Iniciando compra de livro no serviço.", map[string]interface{}{"book_id": id, "buyer_id": buyerID})

	// 1. Buscar o livro (404 se não existir)
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Book{}, err
	}

	// 2. Regra: o dono não pode comprar o próprio livro
	if book.OwnerID == buyerID {
		return domain.Book{}, apperror.NewInvalidOperationError("Você não pode comprar o seu próprio livro.")
	}

	// 3. Regra: um livro vendido não pode ser comprado de novo
	if book.Status == domain.StatusSold {
		return domain.Book{}, apperror.NewInvalidOperationError("O livro já foi vendido.")
	}

	// 4. Transição atômica no banco. O instante da venda é capturado uma
	// única vez e usado tanto no registro persistido quanto no retorno.
	soldAt := time.Now().UTC()
	sold, err := s.repo.MarkSold(ctx, id, soldAt)
	if err != nil {
		s.logger.Error("Falha ao marcar livro como vendido no repositório.", err)
		return domain.Book{}, err
	}
	if !sold {
		// Outra compra venceu a corrida entre a leitura e a escrita.
		return domain.Book{}, apperror.NewInvalidOperationError("O livro já foi vendido.")
	}

	book.Status = domain.StatusSold
	book.SoldAt = &soldAt
	book.UpdatedAt = soldAt

	// 5. Notificação ao vendedor: melhor esforço, em background.
	// Falhas de e-mail jamais revertem a venda ou alteram a resposta.
	go s.notifySold(book, buyerID)

	s.logger.Info("Livro vendido com sucesso.", map[string]interface{}{"book_id": book.ID, "buyer_id": buyerID})
	return book, nil
}

// notifySold resolve vendedor e comprador e dispara o e-mail de venda.
// Roda fora do contexto da requisição, com timeout próprio.
func (s *Service) notifySold(book domain.Book, buyerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	seller, err := s.userRepo.FindByID(ctx, book.OwnerID)
	if err != nil {
		s.logger.Error("Notificação de venda ignorada: vendedor não resolvido.", err)
		return
	}

	// O e-mail do comprador é opcional na notificação.
	buyerEmail := ""
	if buyer, err := s.userRepo.FindByID(ctx, buyerID); err == nil {
		buyerEmail = buyer.Email
	}

	if err := s.mailer.SendBookSoldNotification(seller.Email, book.Title, buyerEmail); err != nil {
		s.logger.Error("Falha ao enviar notificação de venda (ignorada).", err)
	}
}

// SuggestPriceReductions varre os anúncios publicados há mais de daysOld dias
// e envia uma sugestão de redução de preço ao dono de cada um. Falhas
// individuais (dono ausente, e-mail com erro) são contabilizadas e a varredura
// continua; nada aborta o lote.
func (s *Service) SuggestPriceReductions(ctx context.Context, daysOld int) (domain.PriceSuggestionResult, error) {
	if daysOld <= 0 {
		return domain.PriceSuggestionResult{}, apperror.NewValidationError("O número de dias deve ser positivo.")
	}

	staleBooks, err := s.repo.FindStale(ctx, daysOld)
	if err != nil {
		s.logger.Error("Falha ao buscar anúncios parados no repositório.", err)
		return domain.PriceSuggestionResult{}, err
	}

	result := domain.PriceSuggestionResult{ProcessedBooks: len(staleBooks)}
	if len(staleBooks) == 0 {
		return result, nil
	}

	for _, book := range staleBooks {
		seller, err := s.userRepo.FindByID(ctx, book.OwnerID)
		if err != nil {
			s.logger.Warn("Sugestão de preço ignorada: dono não resolvido.", map[string]interface{}{"book_id": book.ID, "error": err.Error()})
			result.EmailsFailed++
			continue
		}

		daysPublished := int(time.Since(book.CreatedAt).Hours() / 24)

		if err := s.mailer.SendPriceReductionSuggestion(seller.Email, book.Title, daysPublished); err != nil {
			s.logger.Warn("Falha ao enviar sugestão de preço.", map[string]interface{}{"book_id": book.ID, "error": err.Error()})
			result.EmailsFailed++
			continue
		}

		result.EmailsSent++
	}

	s.logger.Info("Varredura de sugestão de preços concluída.", map[string]interface{}{
		"processed": result.ProcessedBooks,
		"sent":      result.EmailsSent,
		"failed":    result.EmailsFailed,
	})
	return result, nil
}

// authorizeOwner centraliza a checagem de propriedade usada por
// atualização e remoção de anúncios.
func (s *Service) authorizeOwner(book domain.Book, requesterID string) error {
	if book.OwnerID != requesterID {
		s.logger.Warn("Acesso negado a livro de outro dono.", map[string]interface{}{"book_id": book.ID, "requester_id": requesterID})
		return apperror.NewForbiddenError("Apenas o dono do anúncio pode executar esta operação.")
	}
	return nil
}

// --- Validações de campos do livro ---

func validateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return apperror.NewValidationError("O título é obrigatório.")
	}
	if len(title) > domain.MaxTitleLength {
		return apperror.NewValidationError("O título não pode superar os 200 caracteres.")
	}
	return nil
}

func validateDescription(description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return apperror.NewValidationError("A descrição é obrigatória.")
	}
	if len(description) > domain.MaxDescriptionLength {
		return apperror.NewValidationError("A descrição não pode superar os 2000 caracteres.")
	}
	return nil
}

func validateAuthor(author string) error {
	author = strings.TrimSpace(author)
	if author == "" {
		return apperror.NewValidationError("O autor é obrigatório.")
	}
	if len(author) > domain.MaxAuthorLength {
		return apperror.NewValidationError("O nome do autor não pode superar os 100 caracteres.")
	}
	return nil
}

func validatePrice(price float64) error {
	if price < 0 {
		return apperror.NewValidationError("O preço não pode ser negativo.")
	}
	return nil
}
