package edit

import (
	"fmt"

	"github.com/klytics/sheetbot/internal/ai"
	"github.com/klytics/sheetbot/internal/sandbox"
	"github.com/klytics/sheetbot/internal/table"
)

// SampleRows is how many rows of the table the prompt shows.
const SampleRows = 3

// BuildPrompt describes the table and asks for a fragment that changes df.
func BuildPrompt(t *table.Table, instruction string) []ai.Message {
	prompt := fmt.Sprintf(`You are a data manipulation expert.
I have a table named `+"`df`"+` loaded from a spreadsheet file.
Structure:
%s
Sample Data:
%s
User Instruction: %s

Write a code snippet to modify `+"`df`"+` according to the instruction.
The snippet runs in a restricted Python-like interpreter (Starlark). Only `+"`df`"+` and the `+"`tab`"+` helper namespace exist:
%s

- Do NOT read or write files.
- Do NOT import anything.
- ONLY `+"`df`"+` modification code.
- Wrap code in `+"```python ... ```"+`
`, t.Describe(), t.Head(SampleRows).Text(), instruction, sandbox.NamespaceHelp)

	return []ai.Message{ai.User(prompt)}
}
