package quiz

import (
	"strconv"
	"strings"

	"github.com/m3rciful/quizbot/core/telegram/callbacks"
	"github.com/m3rciful/quizbot/core/telegram/format"
)

// Button actions. Each is a callback endpoint of the Telegram adapter.
const (
	ActionAnswer = "answer"
	ActionHint   = "hint"
	ActionNext   = "next"
)

// Button is an inline keyboard button.
type Button struct {
	Text   string
	Action string
	Data   string
}

// Reply is one outbound message. Text is HTML; when Image is set the reply
// is a photo and Text its caption.
type Reply struct {
	Text    string
	Image   string
	Buttons [][]Button
}

// Upload describes a photo submitted for a photo task.
type Upload struct {
	FileID   string
	Team     string
	Position int
	Total    int
	Credited bool
}

// Outcome is what an engine call wants sent back.
type Outcome struct {
	Replies []Reply
	// Notice is a short status for the user: a callback toast when the
	// update was a button tap, a message otherwise.
	Notice string
	// Result is set when the run finished.
	Result *Result
	// Upload is set when a photo was submitted.
	Upload *Upload
	// Stale marks a tap on a button of a question that is no longer current.
	Stale bool
}

func (o *Outcome) say(text string, rows ...[]Button) {
	o.Replies = append(o.Replies, Reply{Text: text, Buttons: rows})
}

func (o *Outcome) stale() {
	o.Notice = msgStale
	o.Stale = true
}

const (
	msgStartPrompt   = "Type START to begin the quiz."
	msgNotActive     = "You're not in an active quiz. Type START to play."
	msgTeamPrompt    = "🎉 Welcome to the quiz!\nPlease send your team name."
	msgTapOption     = "Please tap one of the options below."
	msgPhotoPrompt   = "📸 Send a photo to complete this task."
	msgNoHint        = "No hint available for this question."
	msgCorrect       = "✅ Correct!"
	msgStale         = "This question is no longer active."
	msgNothingToNext = "Answer the current question first."
	msgTapNext       = "Tap Next to continue."
	msgPlayAgain     = "Type START to play again."
	msgEmptyBank     = "No questions are available right now. Please try again later."
	msgNoPhotoNeeded = "This question doesn't need a photo."
)

func questionHeader(pos, total int) string {
	return format.Bold("Question " + strconv.Itoa(pos+1) + "/" + strconv.Itoa(total))
}

// presentQuestion renders the question at pos.
func presentQuestion(q Question, pos, total int) Reply {
	var b strings.Builder
	b.WriteString(questionHeader(pos, total))
	if len(q.Intro) > 0 {
		b.WriteString("\n\n")
		lines := make([]string, len(q.Intro))
		for i, l := range q.Intro {
			lines[i] = format.EscapeHTML(l)
		}
		b.WriteString(strings.Join(lines, "\n"))
	}
	if q.Text != "" {
		b.WriteString("\n\n")
		b.WriteString(format.EscapeHTML(q.Text))
	}

	var rows [][]Button
	if q.Photo {
		b.WriteString("\n\n")
		b.WriteString(format.Italic(msgPhotoPrompt))
	} else {
		for i, opt := range q.Options {
			rows = append(rows, []Button{{Text: opt, Action: ActionAnswer, Data: callbacks.JoinInts(pos, i)}})
		}
	}
	if q.HasHint() {
		rows = append(rows, []Button{{Text: "💡 Hint", Action: ActionHint, Data: callbacks.JoinInts(pos)}})
	}
	if q.Photo {
		rows = append(rows, []Button{{Text: "⏭ Skip", Action: ActionNext, Data: callbacks.JoinInts(pos)}})
	}
	return Reply{Text: b.String(), Image: q.Image, Buttons: rows}
}

func nextButton(pos, total int) [][]Button {
	label := "Next ➡️"
	if pos+1 >= total {
		label = "Finish 🏁"
	}
	return [][]Button{{{Text: label, Action: ActionNext, Data: callbacks.JoinInts(pos)}}}
}

// explanationReplies zips explanation images and texts.
func explanationReplies(q Question) []Reply {
	steps := q.ExplanationSteps()
	out := make([]Reply, 0, len(steps))
	for _, s := range steps {
		switch {
		case s.Image != "":
			out = append(out, Reply{Image: s.Image, Text: format.EscapeHTML(s.Text)})
		default:
			out = append(out, Reply{Text: "ℹ️ " + format.EscapeHTML(s.Text)})
		}
	}
	return out
}

func wrongAnswer(q Question) string {
	return "❌ Not quite. The correct answer is: " + format.Bold(q.Answer)
}

func hintText(q Question, penaltySeconds int, charged bool) string {
	text := "💡 Hint"
	if q.Hint != "" {
		text += ": " + format.EscapeHTML(q.Hint)
	}
	if charged && penaltySeconds > 0 {
		text += "\n" + format.Italic("+"+strconv.Itoa(penaltySeconds)+"s time penalty")
	}
	return text
}

func welcome(team string) string {
	return "🎉 Welcome to the quiz, " + format.Bold(team) + "! Tap a button to answer."
}

func summary(r *Result) string {
	return format.Lines(
		"🏁 Quiz complete! "+format.Bold(r.Team)+", you scored "+format.Bold(strconv.Itoa(r.Score))+
			" out of "+format.Bold(strconv.Itoa(r.Total))+".",
		timeLine(r),
	)
}

func timeLine(r *Result) string {
	line := "⏱ Time: " + format.Clock(secondsDuration(r.ElapsedSeconds))
	if r.PenaltySeconds > 0 {
		line += " + " + strconv.Itoa(r.PenaltySeconds) + "s penalty = " +
			format.Bold(format.Clock(secondsDuration(r.TotalSeconds)))
	}
	return line
}
