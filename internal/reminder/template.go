package reminder

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatAmount renders a rupiah amount with Indonesian thousands grouping and
// no decimals: 50000 -> "50.000".
func FormatAmount(amount int64) string {
	return idPrinter.Sprintf("%d", amount)
}

// Fields are the values substituted into message templates.
type Fields struct {
	StudentName     string
	Amount          int64
	OrderID         string
	PaymentURL      string
	PaymentTypeName string
}

// Render substitutes the fixed placeholder set into a free-form operator
// template. Substitution is literal; placeholders that are not in the set are
// left verbatim.
func Render(template string, f Fields) string {
	r := strings.NewReplacer(
		"{nama_siswa}", f.StudentName,
		"{jumlah}", FormatAmount(f.Amount),
		"{order_id}", f.OrderID,
		"{link_pembayaran}", f.PaymentURL,
		"{jenis_pembayaran}", f.PaymentTypeName,
	)

	return r.Replace(template)
}

// Templates builds the class treasury's standard messages. ClassName appears
// in the signature ("Admin Kas Kelas 1B").
type Templates struct {
	ClassName string
}

func (t Templates) signature() string {
	return "Admin Kas " + t.ClassName
}

// BeforeDue reminds the parent of an upcoming payment.
func (t Templates) BeforeDue(f Fields, dueDate string) string {
	return fmt.Sprintf(`Assalamu'alaikum Bapak/Ibu wali murid %s,

Kami ingin mengingatkan pembayaran %s sebesar Rp %s yang jatuh tempo pada %s.

Silakan lakukan pembayaran melalui link berikut:
%s

Terima kasih atas perhatiannya.

Wassalamu'alaikum
%s`,
		f.StudentName, f.PaymentTypeName, FormatAmount(f.Amount), dueDate, f.PaymentURL, t.signature())
}

// OnDue tells the parent today is the deadline.
func (t Templates) OnDue(f Fields) string {
	return fmt.Sprintf(`Assalamu'alaikum Bapak/Ibu wali murid %s,

Hari ini adalah batas akhir pembayaran %s sebesar Rp %s.

Mohon segera lakukan pembayaran melalui:
%s

Terima kasih.
%s`,
		f.StudentName, f.PaymentTypeName, FormatAmount(f.Amount), f.PaymentURL, t.signature())
}

// Escalation follows up after the due date has passed.
func (t Templates) Escalation(f Fields, dueDate string) string {
	return fmt.Sprintf(`Assalamu'alaikum Bapak/Ibu wali murid %s,

Pembayaran %s sebesar Rp %s telah melewati jatuh tempo (%s).

Mohon segera melakukan pembayaran untuk menghindari denda keterlambatan.

Link pembayaran:
%s

Jika ada kendala, silakan hubungi admin.

Wassalamu'alaikum
%s`,
		f.StudentName, f.PaymentTypeName, FormatAmount(f.Amount), dueDate, f.PaymentURL, t.signature())
}

// Confirmation thanks the parent after a completed payment.
func (t Templates) Confirmation(f Fields, paymentMethod string) string {
	return fmt.Sprintf(
		"Terima kasih! Pembayaran %s sebesar Rp %s untuk %s telah berhasil diterima melalui %s. Order ID: %s",
		f.PaymentTypeName, FormatAmount(f.Amount), f.StudentName, paymentMethod, f.OrderID)
}

var idMonths = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// FormatDate renders a date the way parents read it: "10 Maret 2025".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), idMonths[t.Month()-1], t.Year())
}
