package bookservice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"bookshop/internal/domain"
	apperror "bookshop/internal/errors"
	"bookshop/internal/pkg/logger"
	"bookshop/internal/service/bookservice"
)

// MockBookRepository é uma implementação mock da interface BookRepository
type MockBookRepository struct {
	mock.Mock
}

func (m *MockBookRepository) Save(ctx context.Context, book domain.Book) (domain.Book, error) {
	args := m.Called(ctx, book)
	return args.Get(0).(domain.Book), args.Error(1)
}

func (m *MockBookRepository) FindByID(ctx context.Context, id string) (domain.Book, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Book), args.Error(1)
}

func (m *MockBookRepository) FindByOwner(ctx context.Context, ownerID string) ([]domain.Book, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).([]domain.Book), args.Error(1)
}

func (m *MockBookRepository) FindPaginatedFiltered(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Book), args.Error(1)
}

func (m *MockBookRepository) FindStale(ctx context.Context, daysOld int) ([]domain.Book, error) {
	args := m.Called(ctx, daysOld)
	return args.Get(0).([]domain.Book), args.Error(1)
}

func (m *MockBookRepository) Update(ctx context.Context, book domain.Book) (domain.Book, error) {
	args := m.Called(ctx, book)
	return args.Get(0).(domain.Book), args.Error(1)
}

func (m *MockBookRepository) MarkSold(ctx context.Context, id string, soldAt time.Time) (bool, error) {
	args := m.Called(ctx, id, soldAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockUserRepository é uma implementação mock da interface UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Save(ctx context.Context, user domain.User) (domain.User, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (domain.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.User), args.Error(1)
}

// MockMailer é uma implementação mock da interface Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendBookSoldNotification(sellerEmail, bookTitle, buyerEmail string) error {
	args := m.Called(sellerEmail, bookTitle, buyerEmail)
	return args.Error(0)
}

func (m *MockMailer) SendPriceReductionSuggestion(sellerEmail, bookTitle string, daysPublished int) error {
	args := m.Called(sellerEmail, bookTitle, daysPublished)
	return args.Error(0)
}

// newTestService monta o serviço com todos os mocks zerados.
func newTestService() (*bookservice.Service, *MockBookRepository, *MockUserRepository, *MockMailer) {
	mockRepo := new(MockBookRepository)
	mockUserRepo := new(MockUserRepository)
	mockMailer := new(MockMailer)
	mockLogger := logger.NewLogger("error")

	svc := bookservice.NewService(mockRepo, mockUserRepo, mockMailer, mockLogger)
	return svc, mockRepo, mockUserRepo, mockMailer
}

// publishedBook retorna um livro PUBLISHED de teste pertencente ao dono informado.
func publishedBook(ownerID string) domain.Book {
	now := time.Now().UTC().Add(-48 * time.Hour)
	return domain.Book{
		ID:          uuid.New().String(),
		Title:       "Dom Casmurro",
		Description: "Clássico de Machado de Assis, em bom estado.",
		Price:       29.90,
		Author:      "Machado de Assis",
		Status:      domain.StatusPublished,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// --- CreateBook ---

// TestCreateBook_Success testa a publicação de um livro válido.
func TestCreateBook_Success(t *testing.T) {
	svc, mockRepo, _, _ := newTestService()

	payload := domain.BookCreate{
		Title:       "Dom Casmurro",
		Description: "Clássico de Machado de Assis, em bom estado.",
		Price:       29.90,
		Author:      "Machado de Assis",
		OwnerID:     uuid.New().String(),
	}

	mockRepo.On("Save", mock.Anything, mock.MatchedBy(func(b domain.Book) bool {
		return b.Title == payload.Title &&
			b.Status == domain.StatusPublished &&
			b.SoldAt == nil &&
			b.OwnerID == payload.OwnerID &&
			b.ID != ""
	})).Return(publishedBook(payload.OwnerID), nil)

	created, err := svc.CreateBook(context.Background(), payload)

	assert.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, created.Status)
	assert.Nil(t, created.SoldAt)
	mockRepo.AssertExpectations(t)
}

// TestCreateBook_Fail_NegativePrice testa a rejeição de preço negativo.
func TestCreateBook_Fail_NegativePrice(t *testing.T) {
	svc, mockRepo, _, _ := newTestService()

	payload := domain.BookCreate{
		Title:       "Dom Casmurro",
		Description: "Descrição válida.",
		Price:       -1.00,
		Author:      "Machado de Assis",
		OwnerID:     uuid.New().String(),
	}

	_, err := svc.CreateBook(context.Background(), payload)

	assert.Error(t, err)
	var valErr *apperror.ValidationError
	assert.True(t, errors.As(err, &valErr))
	mockRepo.AssertNotCalled(t, "Save")
}

// TestCreateBook_Fail_EmptyTitle testa a rejeição de título vazio.
func TestCreateBook_Fail_EmptyTitle(t *testing.T) {
	svc, mockRepo, _, _ := newTestService()

	payload := domain.BookCreate{
		Title:       "   ",
		Description: "Descrição válida.",
		Price:       10.00,
		Author:      "Autor",
		OwnerID:     uuid.New().String(),
	}

	_, err := svc.CreateBook(context.Background(), payload)

	assert.Error(t, err)
	var valErr *apperror.ValidationError
	assert.True(t, errors.As(err, &valErr))
	mockRepo.AssertNotCalled(t, "Save")
}

// --- GetBookByID ---

// TestGetBookByID_Success testa a busca de um livro publicado.
func TestGetBookByID_Success(t *testing.T) {
	svc, mockRepo, _, _ := newTestService()

	book := publishedBook(uuid.New().String())
	mockRepo.On("FindByID", mock.Anything, book.ID).Return(book, nil)

	found, err := svc.GetBookByID(context.Background(), book.ID)

	assert.NoError(t, err)
	assert.Equal(t, book, found)
	mockRepo.AssertExpectations(t)
}

// TestGetBookByID_Fail_Sold testa que um livro já vendido fica indisponível
// pelo caminho público (NotAvailable, e não NotFound).
func TestGetBookByID_Fail_Sold(t *testing.T) {
	svc, mockRepo, _, _ := newTestService()

	soldAt := time.Now().UTC()
	book := publishedBook(uuid.New().String())
	book.Status = domain.StatusSold
	book.SoldAt = &soldAt

	mockRepo.On("FindByID", mock.Anything, book.ID).Return(book, nil)

	_, err := svc.GetBookByID(context.Background(), book.ID)

	assert.Error(t, err)
	var naErr *apperror.NotAvailableError
	assert.True(t, errors.As(err, &naErr))
	mockRepo.AssertExpectations(t)
}

// TestGetBookByID_Fail_InvalidID testa a rejeição de um ID que não é UUID.
func TestGetBookByID_Fail_InvalidID(t *testing.T) {
	svc, mockRepo, _, _ := newTestService()

	_, err := svc.GetBookByID(context.Background(), "nao-e-uuid")

	assert.Error(t, err)
	var valErr *apperror.ValidationError
	assert.True(t, errors.As(err, &valErr))
	mockRepo.AssertNotCalled(t, "FindByID")
}

// --- GetAllBooks (paginação) ---

// TestGetAllBooks_Success testa a listagem com filtros padrão.
func TestGetAllBooks_Success(t *testing.T) {
	svc, mockRepo, _, _ := newTestService()

	expected := []domain.Book{publishedBook(uuid.New().String())}
	filter := domain.BookFilter{Page: 1, Limit: 10}

	mockRepo.On("FindPaginatedFiltered", mock.Anything, filter).Return(expected, nil)

	books, err := svc.GetAllBooks(context.Background(), filter)

	assert.NoError(t, err)
	assert.Equal(t, expected, books)
	mockRepo.AssertExpectations(t)
}

// TestGetAllBooks_Fail_InvalidPagination testa a rejeição de parâmetros de
// paginação fora da faixa (nunca ajustados silenciosamente).
func TestGetAllBooks_Fail_InvalidPagination(t *testing.T) {
	svc, mockRepo, _, _ := newTestService()

	cases := []domain.BookFilter{
		{Page: 0, Limit: 10},
		{Page: -1, Limit: 10},
		{Page: 1, Limit: 0},
		{Page: 1, Limit: -5},
		{Page: 1, Limit: 101},
	}

	for _, filter := range cases {
		_, err := svc.GetAllBooks(context.Background(), filter)

		assert.Error(t, err)
		var valErr *apperror.ValidationError
		assert.True(t, errors.As(err, &valErr))
	}
	mockRepo.AssertNotCalled(t, "FindPaginatedFiltered")
}

// --- UpdateBook ---

// TestUpdateBook_Success testa o patch parcial aplicado pelo dono.
func TestUpdateBook_Success(t *testing.T) {
	svc, mockRepo, _, _ := newTestService()

	ownerID := uuid.New().String()
	book := publishedBook(ownerID)
	newPrice := 19.90

	merged := book
	merged.Price = newPrice

	mockRepo.On("FindByID", mock.Anything, book.ID).Return(book, nil)
	mockRepo.On("Update", mock.Anything, merged).Return(merged, nil)

	updated, err := svc.UpdateBook(context.Background(), book.ID, ownerID, domain.BookUpdate{Price: &newPrice})

	assert.NoError(t, err)
	assert.Equal(t, newPrice, updated.Price)
	assert.Equal(t, book.Title, updated.Title) // campo omitido não muda
	mockRepo.AssertExpectations(t)
}

// TestUpdateBook_Fail_NotOwner testa que um não-dono recebe Forbidden.
func TestUpdateBook_Fail_NotOwner(t *testing.T) {
	svc, mockRepo, _, _ := newTestService()

	book := publishedBook(uuid.New().String())
	newTitle := "Outro Título"

	mockRepo.On("FindByID", mock.Anything, book.ID).Return(book, nil)

	_, err := svc.UpdateBook(context.Background(), book.ID, uuid.New().String(), domain.BookUpdate{Title: &newTitle})

	assert.Error(t, err)
	var fbErr *apperror.ForbiddenError
	assert.True(t, errors.As(err, &fbErr))
	mockRepo.AssertNotCalled(t, "Update")
}

// TestUpdateBook_Fail_NegativePrice testa a rejeição de preço negativo no patch.
func TestUpdateBook_Fail_NegativePrice(t *testing.T) {
	svc, mockRepo, _, _ := newTestService()

	ownerID := uuid.New().String()
	book := publishedBook(ownerID)
	badPrice := -10.00

	mockRepo.On("FindByID", mock.Anything, book.ID).Return(book, nil)

	_, err := svc.UpdateBook(context.Background(), book.ID, ownerID, domain.BookUpdate{Price: &badPrice})

	assert.Error(t, err)
	var valErr *apperror.ValidationError
	assert.True(t, errors.As(err, &valErr))
	mockRepo.AssertNotCalled(t, "Update")
}

// --- DeleteBook ---

// TestDeleteBook_Success testa a remoção pelo dono, retornando o registro removido.
func TestDeleteBook_Success(t *testing.T) {
	svc, mockRepo, _, _ := newTestService()

	ownerID := uuid.New().String()
	book := publishedBook(ownerID)

	mockRepo.On("FindByID", mock.Anything, book.ID).Return(book, nil)
	mockRepo.On("Delete", mock.Anything, book.ID).Return(nil)

	removed, err := svc.DeleteBook(context.Background(), book.ID, ownerID)

	assert.NoError(t, err)
	assert.Equal(t, book, removed)
	mockRepo.AssertExpectations(t)
}

// TestDeleteBook_Fail_NotOwner testa que um não-dono recebe Forbidden.
func TestDeleteBook_Fail_NotOwner(t *testing.T) {
	svc, mockRepo, _, _ := newTestService()

	book := publishedBook(uuid.New().String())

	mockRepo.On("FindByID", mock.Anything, book.ID).Return(book, nil)

	_, err := svc.DeleteBook(context.Background(), book.ID, uuid.New().String())

	assert.Error(t, err)
	var fbErr *apperror.ForbiddenError
	assert.True(t, errors.As(err, &fbErr))
	mockRepo.AssertNotCalled(t, "Delete")
}

// TestDeleteBook_Fail_NotFound testa uma segunda remoção do mesmo ID.
func TestDeleteBook_Fail_NotFound(t *testing.T) {
	svc, mockRepo, _, _ := newTestService()

	bookID := uuid.New().String()
	mockRepo.On("FindByID", mock.Anything, bookID).Return(domain.Book{}, apperror.NewNotFoundError("Livro não encontrado."))

	_, err := svc.DeleteBook(context.Background(), bookID, uuid.New().String())

	assert.Error(t, err)
	var nfErr *apperror.NotFoundError
	assert.True(t, errors.As(err, &nfErr))
	mockRepo.AssertNotCalled(t, "Delete")
}

// --- BuyBook ---

// TestBuyBook_Success testa a compra de um livro publicado, incluindo a
// notificação de venda disparada em background.
func TestBuyBook_Success(t *testing.T) {
	svc, mockRepo, mockUserRepo, mockMailer := newTestService()

	ownerID := uuid.New().String()
	buyerID := uuid.New().String()
	book := publishedBook(ownerID)

	seller := domain.User{ID: ownerID, Email: "vendedor@teste.com"}
	buyer := domain.User{ID: buyerID, Email: "comprador@teste.com"}

	// Sincroniza a asserção com a goroutine de notificação.
	notified := make(chan struct{})

	mockRepo.On("FindByID", mock.Anything, book.ID).Return(book, nil)
	mockRepo.On("MarkSold", mock.Anything, book.ID, mock.AnythingOfType("time.Time")).Return(true, nil)
	mockUserRepo.On("FindByID", mock.Anything, ownerID).Return(seller, nil)
	mockUserRepo.On("FindByID", mock.Anything, buyerID).Return(buyer, nil)
	mockMailer.On("SendBookSoldNotification", seller.Email, book.Title, buyer.Email).
		Run(func(args mock.Arguments) { close(notified) }).
		Return(nil)

	bought, err := svc.BuyBook(context.Background(), book.ID, buyerID)

	assert.NoError(t, err)
	assert.Equal(t, domain.StatusSold, bought.Status)
	assert.NotNil(t, bought.SoldAt)
	assert.Equal(t, *bought.SoldAt, bought.UpdatedAt)

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("notificação de venda não foi disparada")
	}

	mockRepo.AssertExpectations(t)
	mockMailer.AssertExpectations(t)
}

// TestBuyBook_Fail_OwnBook testa que o dono não pode comprar o próprio livro.
func TestBuyBook_Fail_OwnBook(t *testing.T) {
	svc, mockRepo, _, mockMailer := newTestService()

	ownerID := uuid.New().String()
	book := publishedBook(ownerID)

	mockRepo.On("FindByID", mock.Anything, book.ID).Return(book, nil)

	_, err := svc.BuyBook(context.Background(), book.ID, ownerID)

	assert.Error(t, err)
	var opErr *apperror.InvalidOperationError
	assert.True(t, errors.As(err, &opErr))
	mockRepo.AssertNotCalled(t, "MarkSold")
	mockMailer.AssertNotCalled(t, "SendBookSoldNotification")
}

// TestBuyBook_Fail_AlreadySold testa a recompra de um livro já vendido.
func TestBuyBook_Fail_AlreadySold(t *testing.T) {
	svc, mockRepo, _, mockMailer := newTestService()

	soldAt := time.Now().UTC()
	book := publishedBook(uuid.New().String())
	book.Status = domain.StatusSold
	book.SoldAt = &soldAt

	mockRepo.On("FindByID", mock.Anything, book.ID).Return(book, nil)

	_, err := svc.BuyBook(context.Background(), book.ID, uuid.New().String())

	assert.Error(t, err)
	var opErr *apperror.InvalidOperationError
	assert.True(t, errors.As(err, &opErr))
	mockRepo.AssertNotCalled(t, "MarkSold")
	mockMailer.AssertNotCalled(t, "SendBookSoldNotification")
}

// TestBuyBook_Fail_LostRace testa duas compras concorrentes: a que perde a
// corrida não afeta nenhuma linha e recebe o mesmo erro de livro vendido.
func TestBuyBook_Fail_LostRace(t *testing.T) {
	svc, mockRepo, _, mockMailer := newTestService()

	book := publishedBook(uuid.New().String())
	buyerID := uuid.New().String()

	mockRepo.On("FindByID", mock.Anything, book.ID).Return(book, nil)
	// A escrita condicional não afeta nenhuma linha: outra compra venceu.
	mockRepo.On("MarkSold", mock.Anything, book.ID, mock.AnythingOfType("time.Time")).Return(false, nil)

	_, err := svc.BuyBook(context.Background(), book.ID, buyerID)

	assert.Error(t, err)
	var opErr *apperror.InvalidOperationError
	assert.True(t, errors.As(err, &opErr))
	mockRepo.AssertExpectations(t)
	mockMailer.AssertNotCalled(t, "SendBookSoldNotification")
}

// TestBuyBook_Success_NotificationFailure testa que uma falha de e-mail
// jamais reverte a venda nem altera a resposta da compra.
func TestBuyBook_Success_NotificationFailure(t *testing.T) {
	svc, mockRepo, mockUserRepo, mockMailer := newTestService()

	ownerID := uuid.New().String()
	buyerID := uuid.New().String()
	book := publishedBook(ownerID)

	seller := domain.User{ID: ownerID, Email: "vendedor@teste.com"}
	buyer := domain.User{ID: buyerID, Email: "comprador@teste.com"}

	notified := make(chan struct{})

	mockRepo.On("FindByID", mock.Anything, book.ID).Return(book, nil)
	mockRepo.On("MarkSold", mock.Anything, book.ID, mock.AnythingOfType("time.Time")).Return(true, nil)
	mockUserRepo.On("FindByID", mock.Anything, ownerID).Return(seller, nil)
	mockUserRepo.On("FindByID", mock.Anything, buyerID).Return(buyer, nil)
	mockMailer.On("SendBookSoldNotification", seller.Email, book.Title, buyer.Email).
		Run(func(args mock.Arguments) { close(notified) }).
		Return(errors.New("smtp indisponível"))

	bought, err := svc.BuyBook(context.Background(), book.ID, buyerID)

	assert.NoError(t, err)
	assert.Equal(t, domain.StatusSold, bought.Status)

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("notificação de venda não foi disparada")
	}

	mockRepo.AssertExpectations(t)
}

// --- SuggestPriceReductions ---

// TestSuggestPriceReductions_Success testa a varredura com todos os envios OK.
func TestSuggestPriceReductions_Success(t *testing.T) {
	svc, mockRepo, mockUserRepo, mockMailer := newTestService()

	owner := domain.User{ID: uuid.New().String(), Email: "dono@teste.com"}
	bookA := publishedBook(owner.ID)
	bookB := publishedBook(owner.ID)

	mockRepo.On("FindStale", mock.Anything, 7).Return([]domain.Book{bookA, bookB}, nil)
	mockUserRepo.On("FindByID", mock.Anything, owner.ID).Return(owner, nil)
	mockMailer.On("SendPriceReductionSuggestion", owner.Email, bookA.Title, mock.AnythingOfType("int")).Return(nil)
	mockMailer.On("SendPriceReductionSuggestion", owner.Email, bookB.Title, mock.AnythingOfType("int")).Return(nil)

	result, err := svc.SuggestPriceReductions(context.Background(), 7)

	assert.NoError(t, err)
	assert.Equal(t, 2, result.ProcessedBooks)
	assert.Equal(t, 2, result.EmailsSent)
	assert.Equal(t, 0, result.EmailsFailed)
	mockRepo.AssertExpectations(t)
	mockMailer.AssertExpectations(t)
}

// TestSuggestPriceReductions_PartialFailure testa que falhas individuais são
// contabilizadas e a varredura continua até o fim do lote.
func TestSuggestPriceReductions_PartialFailure(t *testing.T) {
	svc, mockRepo, mockUserRepo, mockMailer := newTestService()

	ownerA := domain.User{ID: uuid.New().String(), Email: "a@teste.com"}
	ownerB := domain.User{ID: uuid.New().String(), Email: "b@teste.com"}
	ownerC := uuid.New().String() // dono que não resolve mais

	bookA := publishedBook(ownerA.ID)
	bookB := publishedBook(ownerB.ID)
	bookC := publishedBook(ownerC)

	mockRepo.On("FindStale", mock.Anything, 7).Return([]domain.Book{bookA, bookB, bookC}, nil)
	mockUserRepo.On("FindByID", mock.Anything, ownerA.ID).Return(ownerA, nil)
	mockUserRepo.On("FindByID", mock.Anything, ownerB.ID).Return(ownerB, nil)
	mockUserRepo.On("FindByID", mock.Anything, ownerC).Return(domain.User{}, apperror.NewNotFoundError("Usuário não encontrado."))
	mockMailer.On("SendPriceReductionSuggestion", ownerA.Email, bookA.Title, mock.AnythingOfType("int")).Return(nil)
	mockMailer.On("SendPriceReductionSuggestion", ownerB.Email, bookB.Title, mock.AnythingOfType("int")).Return(errors.New("smtp indisponível"))

	result, err := svc.SuggestPriceReductions(context.Background(), 7)

	assert.NoError(t, err)
	assert.Equal(t, 3, result.ProcessedBooks)
	assert.Equal(t, 1, result.EmailsSent)
	assert.Equal(t, 2, result.EmailsFailed)
	mockRepo.AssertExpectations(t)
	mockMailer.AssertExpectations(t)
}

// TestSuggestPriceReductions_Fail_InvalidDays testa a rejeição de dias <= 0.
func TestSuggestPriceReductions_Fail_InvalidDays(t *testing.T) {
	svc, mockRepo, _, _ := newTestService()

	_, err := svc.SuggestPriceReductions(context.Background(), 0)

	assert.Error(t, err)
	var valErr *apperror.ValidationError
	assert.True(t, errors.As(err, &valErr))
	mockRepo.AssertNotCalled(t, "FindStale")
}

// TestSuggestPriceReductions_Empty testa a varredura sem anúncios parados.
func TestSuggestPriceReductions_Empty(t *testing.T) {
	svc, mockRepo, _, mockMailer := newTestService()

	mockRepo.On("FindStale", mock.Anything, 7).Return([]domain.Book{}, nil)

	result, err := svc.SuggestPriceReductions(context.Background(), 7)

	assert.NoError(t, err)
	assert.Equal(t, domain.PriceSuggestionResult{}, result)
	mockMailer.AssertNotCalled(t, "SendPriceReductionSuggestion")
}
