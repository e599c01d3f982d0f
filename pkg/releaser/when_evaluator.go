package releaser

import (
	"errors"
	"os"

	"github.com/Knetic/govaluate"
	"github.com/rs/zerolog/log"
)

// WhenEvaluator evaluates when clauses from the release manifest
type WhenEvaluator interface {
	Evaluate(stageName, input string, parameters map[string]interface{}) (bool, error)
	GetParameters() map[string]interface{}
}

type whenEvaluator struct {
	envvarHelper EnvvarHelper
}

// NewWhenEvaluator returns a new WhenEvaluator
func NewWhenEvaluator(envvarHelper EnvvarHelper) WhenEvaluator {
	return &whenEvaluator{
		envvarHelper: envvarHelper,
	}
}

func (we *whenEvaluator) Evaluate(stageName, input string, parameters map[string]interface{}) (result bool, err error) {

	if input == "" {
		return false, errors.New("When expression is empty")
	}

	log.Debug().Msgf("[%v] Evaluating when expression \"%v\" with parameters \"%v\"", stageName, input, parameters)

	// replace release envvars in when clause
	input = os.Expand(input, we.envvarHelper.GetReleaseEnv)

	expression, err := govaluate.NewEvaluableExpression(input)
	if err != nil {
		return
	}

	r, err := expression.Evaluate(parameters)

	log.Debug().Msgf("[%v] Result of when expression \"%v\" is \"%v\"", stageName, input, r)

	if result, ok := r.(bool); ok {
		return result, err
	}

	return false, errors.New("Result of evaluating when expression is not of type boolean")
}

func (we *whenEvaluator) GetParameters() map[string]interface{} {

	parameters := make(map[string]interface{}, 3)
	parameters["status"] = we.envvarHelper.GetReleaseEnv("RELEASE_STATUS")
	parameters["version"] = we.envvarHelper.GetReleaseEnv("RELEASE_VERSION")
	parameters["ref"] = we.envvarHelper.GetReleaseEnv("RELEASE_GIT_REF")
	parameters["branch"] = we.envvarHelper.GetReleaseEnv("RELEASE_GIT_BRANCH")

	return parameters
}
