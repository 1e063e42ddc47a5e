// Package prompt turns a story request into model instructions.
package prompt

import (
	"fmt"
	"strings"

	"fairytales/internal/domain/story"
)

type Kind int

const (
	KindSimple Kind = iota
	KindInitial
	KindContinue
)

func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindInitial:
		return "initial"
	case KindContinue:
		return "continue"
	default:
		return "unknown"
	}
}

// Turn selects which instruction Build produces.
type Turn struct {
	Kind   Kind
	Choice string
}

func Simple() Turn  { return Turn{Kind: KindSimple} }
func Initial() Turn { return Turn{Kind: KindInitial} }

// Continue is the turn following the user's pick.
func Continue(choice string) Turn {
	return Turn{Kind: KindContinue, Choice: choice}
}

// StoryLength is the target size of a one-shot story, in characters.
const StoryLength = 4000

// Build returns the instruction text for the request and turn. It is pure:
// identical inputs always give identical output.
func Build(req story.Request, turn Turn) string {
	name := strings.TrimSpace(req.ProtagonistName)
	companion := strings.TrimSpace(req.Companion)
	setting := strings.TrimSpace(req.Setting)

	switch turn.Kind {
	case KindSimple:
		return fmt.Sprintf(
			"Создай длинную, добрую и очень увлекательную сказку для ребенка по имени %[1]s. "+
				"Важнейшее условие: %[1]s — не просто слушатель, а главный герой этой истории. "+
				"Опиши, как %[1]s вместе со своим другом, %[2]s, отправляется в невероятное приключение в %[3]s. "+
				"Вплети %[1]s прямо в повествование: пусть он(а) принимает важные решения, проявляет смекалку, "+
				"помогает другим персонажам и напрямую влияет на развитие сюжета. "+
				"История должна быть позитивной, с обязательным счастливым концом, идеально подходящей для ребенка 3-6 лет. "+
				"Желаемый объем сказки — около %[4]d символов.%[5]s",
			name, companion, setting, StoryLength, theme(req))

	case KindInitial:
		return fmt.Sprintf(
			"Ты — мастер интерактивных сказок для детей 3-6 лет. Твоя цель — вовлечь ребенка в волшебный мир.\n"+
				"Создай начало истории, где главный герой — ребенок по имени %[1]s. Его верный спутник — %[2]s, а место действия — %[3]s. "+
				"С самого начала %[1]s должен быть в центре событий, действующим лицом, а не наблюдателем.%[4]s\n"+
				"Напиши первую часть (3-5 предложений), где %[1]s и %[2]s оказываются перед первым выбором. "+
				"В конце задай прямой вопрос %[1]s, предлагая 2-3 варианта, как поступить дальше.\n"+
				"Твой ответ ДОЛЖЕН БЫТЬ СТРОГО в формате JSON: "+
				`{"story": "текст первой части...", "choices": ["вариант 1", "вариант 2"], "isFinal": false}.`+"\n"+
				"Никакого текста до или после JSON.",
			name, companion, setting, theme(req))

	case KindContinue:
		return fmt.Sprintf(
			"Отлично! %[1]s сделал(а) свой выбор: %[3]q.\n"+
				"Теперь продолжи историю, отталкиваясь от этого решения. Опиши, какие приключения ждут %[1]s и %[2]s дальше. "+
				"Пусть следующая часть (3-5 предложений) будет прямым следствием выбора.\n"+
				"В конце, если приключение продолжается, снова поставь %[1]s перед выбором из 2-3 вариантов. "+
				"Если же история подходит к логическому завершению, напиши красивый финал (2-3 предложения).\n"+
				"Твой ответ ДОЛЖЕН БЫТЬ СТРОГО в формате JSON.\n"+
				`Для продолжения: {"story": "текст...", "choices": ["выбор 1", "выбор 2"], "isFinal": false}.`+"\n"+
				`Для финала: {"story": "финальный текст...", "choices": [], "isFinal": true}.`+"\n"+
				"Никакого текста до или после JSON.",
			name, companion, strings.TrimSpace(turn.Choice))
	}
	return ""
}

func theme(req story.Request) string {
	t, ok := story.FindTemplate(req.TemplateID)
	if !ok || t.ID == story.CustomTemplateID {
		return ""
	}
	return " Тема сказки: " + t.Description
}
