package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"bookshop/internal/pkg/logger"
)

// Mailer define o contrato de notificações por e-mail do BookShop.
// As notificações são "melhor esforço": quem chama decide o que fazer com o
// erro, mas nenhuma falha de envio deve derrubar uma operação de negócio.
type Mailer interface {
	SendBookSoldNotification(sellerEmail, bookTitle, buyerEmail string) error
	SendPriceReductionSuggestion(sellerEmail, bookTitle string, daysPublished int) error
}

// SMTPMailer é a implementação concreta da interface Mailer via SMTP simples.
type SMTPMailer struct {
	host   string
	port   int
	user   string
	pass   string
	from   string // endereço do remetente (e.g., "noreply@bookshop.com")
	logger logger.Logger
}

// NewSMTPMailer cria e retorna uma nova instância do mailer SMTP.
// Esta função é chamada no main.go.
func NewSMTPMailer(host string, port int, user, pass, from string, log logger.Logger) *SMTPMailer {
	return &SMTPMailer{
		host:   host,
		port:   port,
		user:   user,
		pass:   pass,
		from:   from,
		logger: log,
	}
}

// SendBookSoldNotification avisa o vendedor que o livro dele foi vendido.
// buyerEmail é opcional (string vazia quando o comprador não pôde ser resolvido).
func (m *SMTPMailer) SendBookSoldNotification(sellerEmail, bookTitle, buyerEmail string) error {
	buyerLine := ""
	if buyerEmail != "" {
		buyerLine = fmt.Sprintf("<p>Comprador: %s</p>", buyerEmail)
	}

	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; padding: 20px;">
  <div style="max-width: 600px; margin: 0 auto;">
    <div style="background-color: #4CAF50; color: white; padding: 20px; text-align: center;">
      <h1>Boas notícias!</h1>
    </div>
    <div style="background-color: #f9f9f9; padding: 20px; margin-top: 20px;">
      <p>Olá,</p>
      <p>Seu livro <strong>"%s"</strong> foi vendido.</p>
      %s
      <p>Obrigado por usar o BookShop!</p>
    </div>
  </div>
</body>
</html>`, bookTitle, buyerLine)

	return m.send(sellerEmail, "Seu livro foi vendido!", body)
}

// SendPriceReductionSuggestion sugere ao vendedor reduzir o preço de um
// anúncio publicado há daysPublished dias sem venda.
func (m *SMTPMailer) SendPriceReductionSuggestion(sellerEmail, bookTitle string, daysPublished int) error {
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; padding: 20px;">
  <div style="max-width: 600px; margin: 0 auto;">
    <div style="background-color: #FF9800; color: white; padding: 20px; text-align: center;">
      <h1>Sugestão para o seu livro</h1>
    </div>
    <div style="background-color: #f9f9f9; padding: 20px; margin-top: 20px;">
      <p>Olá,</p>
      <p>Seu livro <strong>"%s"</strong> está publicado há %d dias e ainda não foi vendido.</p>
      <p>Que tal considerar uma redução de preço para atrair mais compradores?</p>
      <p>Equipe BookShop</p>
    </div>
  </div>
</body>
</html>`, bookTitle, daysPublished)

	return m.send(sellerEmail, "Sugestão: considerar baixar o preço?", body)
}

// send monta a mensagem MIME (HTML) e a entrega via SMTP.
func (m *SMTPMailer) send(to, subject, htmlBody string) error {
	m.logger.Debug("Enviando e-mail.", map[string]interface{}{"to": to, "subject": subject})

	headers := []string{
		fmt.Sprintf("From: BookShop <%s>", m.from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
	}
	msg := strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody

	addr := fmt.Sprintf("%s:%d", m.host, m.port)

	// Autenticação apenas quando houver credenciais configuradas
	// (SMTPs locais de desenvolvimento, como o Mailhog, não exigem).
	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}

	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg)); err != nil {
		m.logger.Error("Falha ao enviar e-mail.", err)
		return fmt.Errorf("falha ao enviar e-mail para %s: %w", to, err)
	}

	m.logger.Info("E-mail enviado com sucesso.", map[string]interface{}{"to": to, "subject": subject})
	return nil
}
