// Package dockwright generates Dockerfiles for arbitrary scripts by letting a
// language model draft one, testing the draft in a sandbox, and feeding the
// verdict back until the image produces the expected output.
//
// A run is driven by a Generator:
//
//   - The script is opened with source.Open. Small files are sent to the model
//     verbatim; large files are only reachable through the search_in_file action.
//   - When the Docker daemon answers, the test_dockerfile action is exposed. It
//     builds the draft, runs it with the example input under resource limits,
//     and returns a container.Verdict.
//   - The model may invoke its actions over several turns. The final response
//     is reduced to the first fenced code block.
//
// # Quick Start
//
//	model, err := llm.New(llm.ProviderConfig{Name: llm.ProviderOpenAI, APIKey: key})
//	if err != nil {
//	    return err
//	}
//
//	rt, err := container.NewDockerRuntime()
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	desc, err := source.Open("scripts/analyzer.py")
//	if err != nil {
//	    return err
//	}
//
//	gen := dockwright.NewGenerator(model,
//	    dockwright.WithSandbox(container.NewManager(rt)),
//	    dockwright.WithMaxTurns(5),
//	)
//
//	res := gen.Generate(ctx, dockwright.Request{Source: desc, Example: example})
//	if !res.Succeeded {
//	    return res.Err
//	}
//	path, err := dockwright.SaveArtifact(res.Artifact, desc.Path(), "")
//
// # Capabilities
//
// The actions offered to the model are fixed per run by ComputeCapabilities:
// search only for files above the size threshold, test only when the sandbox
// is reachable. Without a sandbox the run still produces a Dockerfile, and the
// result carries NoValidationNote.
//
// # Results
//
// Generate always returns a Result. Succeeded reports whether an artifact was
// produced; Validated reports whether the last sandbox test passed. Failures
// keep the cause in Err for errors.Is against ErrProviderCallFailed,
// ErrMaxTurnsExceeded and ErrEmptyArtifact.
package dockwright
