package calcfield

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"querylens/internal/domain"
)

func TestEvaluate_Arithmetic(t *testing.T) {
	row := map[string]interface{}{"qty": 3, "price": 9.5}

	assert.Equal(t, 28.5, Evaluate("[qty] * [price]", row, domain.CalcResultNumber))
	assert.Equal(t, 12.5, Evaluate("[qty] + [price]", row, domain.CalcResultNumber))
	assert.Equal(t, -6.5, Evaluate("[qty] - [price]", row, domain.CalcResultNumber))
	assert.Equal(t, 2.0, Evaluate("[qty] * 4 / 6", row, domain.CalcResultNumber))
}

func TestEvaluate_Precedence(t *testing.T) {
	row := map[string]interface{}{}
	assert.Equal(t, 14.0, Evaluate("2 + 3 * 4", row, domain.CalcResultNumber))
	assert.Equal(t, 20.0, Evaluate("(2 + 3) * 4", row, domain.CalcResultNumber))
	assert.Equal(t, -5.0, Evaluate("-2 - 3", row, domain.CalcResultNumber))
	// left associativity
	assert.Equal(t, 1.0, Evaluate("6 / 3 / 2", row, domain.CalcResultNumber))
}

func TestEvaluate_DivisionByZero(t *testing.T) {
	row := map[string]interface{}{"total": 10, "count": 0}
	assert.Equal(t, 0.0, Evaluate("[total] / [count]", row, domain.CalcResultNumber))
}

func TestEvaluate_Conditionals(t *testing.T) {
	done := map[string]interface{}{"status": "done"}
	open := map[string]interface{}{"status": "open"}

	assert.Equal(t, "Y", Evaluate(`IF([status] = "done", "Y", "N")`, done, domain.CalcResultString))
	assert.Equal(t, "N", Evaluate(`IF([status] = "done", "Y", "N")`, open, domain.CalcResultString))
	// function name is case-insensitive
	assert.Equal(t, "Y", Evaluate(`if([status] = "done", "Y", "N")`, done, domain.CalcResultString))
}

func TestEvaluate_NestedIf(t *testing.T) {
	row := map[string]interface{}{"score": 85}
	expr := `IF([score] >= 90, "A", IF([score] >= 80, "B", "C"))`
	assert.Equal(t, "B", Evaluate(expr, row, domain.CalcResultString))

	row["score"] = 95
	assert.Equal(t, "A", Evaluate(expr, row, domain.CalcResultString))
	row["score"] = 42
	assert.Equal(t, "C", Evaluate(expr, row, domain.CalcResultString))
}

func TestEvaluate_Comparisons(t *testing.T) {
	row := map[string]interface{}{"a": 5, "b": "5", "s": "x"}

	// numeric comparison applies when both sides parse as numbers
	assert.Equal(t, true, Evaluate(`IF([a] = [b], true, false)`, row, domain.CalcResultBoolean))
	assert.Equal(t, true, Evaluate(`IF([a] > 4, true, false)`, row, domain.CalcResultBoolean))
	assert.Equal(t, true, Evaluate(`IF([a] <= 5, true, false)`, row, domain.CalcResultBoolean))
	// string fallback only for equality operators
	assert.Equal(t, true, Evaluate(`IF([s] != "y", true, false)`, row, domain.CalcResultBoolean))
	assert.Equal(t, false, Evaluate(`IF([s] > "a", true, false)`, row, domain.CalcResultBoolean))
	// a condition without a comparison is simply false
	assert.Equal(t, "no", Evaluate(`IF([s], "yes", "no")`, row, domain.CalcResultString))
}

func TestEvaluate_Functions(t *testing.T) {
	row := map[string]interface{}{"x": -4.2, "name": "Alice"}

	assert.Equal(t, 4.2, Evaluate("ABS([x])", row, domain.CalcResultNumber))
	assert.Equal(t, "3.14", Evaluate("ROUND(3.14159, 2)", row, domain.CalcResultString))
	assert.Equal(t, 3.14, Evaluate("ROUND(3.14159, 2)", row, domain.CalcResultNumber))
	assert.Equal(t, "3.142", Evaluate("ROUND(3.14159, 3)", row, domain.CalcResultString))
	assert.Equal(t, "ALICE", Evaluate("UPPER([name])", row, domain.CalcResultString))
	assert.Equal(t, "alice", Evaluate("LOWER([name])", row, domain.CalcResultString))
}

func TestEvaluate_ErrorsYieldNil(t *testing.T) {
	row := map[string]interface{}{"qty": 3}

	assert.Nil(t, Evaluate("[missing] * 2", row, domain.CalcResultNumber), "unknown column")
	assert.Nil(t, Evaluate("[qty] +", row, domain.CalcResultNumber), "truncated expression")
	assert.Nil(t, Evaluate(`"text" * 2`, row, domain.CalcResultNumber), "non-numeric operand")
	assert.Nil(t, Evaluate("FOO(1)", row, domain.CalcResultNumber), "unknown function")
	assert.Nil(t, Evaluate("IF(1 = 1, 2)", row, domain.CalcResultNumber), "wrong arity")
}

func TestEvaluate_ResultTypeCoercion(t *testing.T) {
	row := map[string]interface{}{"n": "12.5", "flag": "TRUE", "day": "2026-01-15"}

	assert.Equal(t, 12.5, Evaluate("[n]", row, domain.CalcResultNumber))
	assert.Nil(t, Evaluate(`"abc"`, row, domain.CalcResultNumber))
	assert.Equal(t, true, Evaluate("[flag]", row, domain.CalcResultBoolean))
	assert.Equal(t, false, Evaluate(`"yes"`, row, domain.CalcResultBoolean))
	assert.Equal(t, "2026-01-15", Evaluate("[day]", row, domain.CalcResultDate))
}

func TestEvaluate_NullPropagation(t *testing.T) {
	row := map[string]interface{}{"amount": nil}
	assert.Nil(t, Evaluate("[amount] * 2", row, domain.CalcResultNumber))
	assert.Equal(t, "empty", Evaluate(`IF([amount] = null, "empty", "set")`, row, domain.CalcResultString))
}

func TestValidateCalcExpression_Denylist(t *testing.T) {
	err := domain.ValidateCalcExpression("[a]; DROP TABLE users")
	assert.Error(t, err)
	assert.Error(t, domain.ValidateCalcExpression("delete from t"))
	assert.Error(t, domain.ValidateCalcExpression(""))
	assert.NoError(t, domain.ValidateCalcExpression("[dropped_count] + 1"), "keyword match requires a trailing space")
}
