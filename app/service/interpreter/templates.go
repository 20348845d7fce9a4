package interpreter

import (
	"fmt"
	"math/rand/v2"
	"medremind/app/service/ledger"
	"medremind/app/service/schedule"
	"strings"
)

// Picker chooses one of n reply variants.
type Picker interface {
	Pick(n int) int
}

type randomPicker struct{}

func (randomPicker) Pick(n int) int {
	return rand.IntN(n)
}

func RandomPicker() Picker {
	return randomPicker{}
}

// FixedPicker always picks the same variant, modulo n.
type FixedPicker int

func (p FixedPicker) Pick(n int) int {
	return int(p) % n
}

var acknowledgements = []string{
	"✅ Show! Marquei que você tomou *%s* às *%s*. 👌",
	"📝 Anotado! *%s* às *%s* registrado com sucesso!",
	"💊 Beleza! Já deixei aqui: *%s* às *%s*!",
	"📌 Confirmação feita! *%s*, horário *%s*. Tá na mão.",
	"🎯 Pronto! *%s* das *%s* já tá confirmado.",
}

var puzzled = []string{
	"😵‍💫 Ih rapaz, essa eu não entendi!",
	"🤖 Ainda não aprendi isso... mas tô tentando!",
	"😅 Tenta de novo aí com outras palavras!",
	"🧠 Buguei com esse comando. Refaz aí rapidinho?",
	"👀 Hein? Repete aí mais devagar que eu não peguei...",
}

const helpMenu = "💬 Exemplos de comandos:\n" +
	"- *tomei o Lipidil*\n" +
	"- *quais faltam?*\n" +
	"- *o que já tomei?*\n" +
	"- *errei, não tomei o [remédio]*\n" +
	"- *corrige, tomei o [remédio] às [hora]*"

const (
	askWhichTaken   = "🤔 Qual remédio você tomou mesmo?"
	askWhichRevoke  = "😬 Qual remédio você quer apagar mesmo?"
	askWhichCorrect = "🤨 Qual remédio? Não entendi direito..."
	nothingPending  = "🎉 Nenhum remédio pendente hoje!"
	nothingTaken    = "📭 Nenhum remédio confirmado hoje."
	saveFailed      = "⚠️ Não consegui registrar agora. Tenta de novo daqui a pouco?"
)

func (s *Service) acknowledge(greeting, name, at string) string {
	line := acknowledgements[s.picker.Pick(len(acknowledgements))]
	return greeting + "\n" + fmt.Sprintf(line, name, at)
}

func (s *Service) fallback(greeting string) string {
	return greeting + "\n" + puzzled[s.picker.Pick(len(puzzled))] + "\n" + helpMenu
}

func corrected(name, at string) string {
	return fmt.Sprintf("⏰ Corrigido! *%s* às *%s*.", name, at)
}

func correctedAsNew(name, at string) string {
	return fmt.Sprintf("🤔 Não achei confirmação de *%s* hoje, então registrei *%s* às *%s*.", name, name, at)
}

func revoked(name string) string {
	return fmt.Sprintf("🗑️ Remoção confirmada de *%s*.", name)
}

func nothingToRevoke(name string) string {
	return fmt.Sprintf("🤷 Não havia confirmação de *%s* hoje.", name)
}

func pendingList(doses []schedule.Dose) string {
	if len(doses) == 0 {
		return nothingPending
	}

	var b strings.Builder
	b.WriteString("📋 Ainda falta tomar:")
	for _, d := range doses {
		b.WriteString("\n🔔 ")
		b.WriteString(d.Display())
	}

	return b.String()
}

func takenList(taken []ledger.Taken) string {
	if len(taken) == 0 {
		return nothingTaken
	}

	var b strings.Builder
	b.WriteString("🧾 Hoje você tomou:")
	for _, t := range taken {
		fmt.Fprintf(&b, "\n✅ %s às %s", t.Medication, t.Time)
	}

	return b.String()
}
