package main

import (
	"fmt"
	"os"
	"strings"

	"ai-refinery-be/internal/constant"
	"ai-refinery-be/pkg/companion"
	"ai-refinery-be/pkg/prompt"
)

// Placeholder fingerprints - should NEVER survive template rendering
var placeholderFingerprints = []string{
	"{context}",
	"{user_input}",
	"{draft}",
	"{critique}",
	"{prev_drafts}",
}

func main() {
	kind := companion.KindGeneric
	if len(os.Args) > 1 {
		kind = os.Args[1]
	}
	query := "Explain why write-through caches simplify recovery."
	if len(os.Args) > 2 {
		query = strings.Join(os.Args[2:], " ")
	}

	fmt.Println("╔══════════════════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                        REFINEMENT PROMPT TRACE SCRIPT                         ║")
	fmt.Println("║   Purpose: Observe exact prompts each phase would send, without an LLM call   ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════════════════════╝")
	fmt.Println()

	registry := companion.DefaultRegistry()
	cfg := registry.Lookup(kind)
	if cfg.Kind != kind {
		fmt.Printf("⚠️  Unknown kind %q, falling back to %q\n\n", kind, cfg.Kind)
	}

	templates := prompt.NewStore(prompt.TemplateSet{
		InitialSystem:  constant.RefineInitialSystemPromptV1,
		CritiqueSystem: constant.RefineCritiqueSystemPromptV1,
		RevisionSystem: constant.RefineRevisionSystemPromptV1,
		CritiqueUser:   constant.RefineCritiqueUserPromptV1,
		RevisionUser:   constant.RefineRevisionUserPromptV1,
	})
	set := templates.ForKind(cfg.Kind, cfg.DomainContext)

	fmt.Printf("Kind: %s (max_loops=%d, similarity_threshold=%.2f)\n", cfg.Kind, cfg.MaxLoops, cfg.SimilarityThreshold)
	fmt.Printf("Query: %s\n", query)

	// Simulated slot state so the critique window and revision prompt have
	// something realistic to render.
	draft := "Write-through caches push every write to the backing store immediately, so the store is always current."
	revision := "Write-through caches push every write to the backing store immediately, so after a crash no replay is needed."
	critique := "State the recovery consequence explicitly instead of implying it."

	// ==========================
	// PHASE 1: DRAFT
	// ==========================
	fmt.Println("\n┌──────────────────────────────────────────────────────────────────────────────┐")
	fmt.Println("│  PHASE 1: DRAFT                                                              │")
	fmt.Println("└──────────────────────────────────────────────────────────────────────────────┘")
	draftSystem, draftUser := prompt.DraftPrompts(set, query)
	printPrompt("SYSTEM", draftSystem)
	printPrompt("USER", draftUser)

	// ==========================
	// PHASE 2: CRITIQUE
	// ==========================
	fmt.Println("\n┌──────────────────────────────────────────────────────────────────────────────┐")
	fmt.Println("│  PHASE 2: CRITIQUE (one revision on record)                                  │")
	fmt.Println("└──────────────────────────────────────────────────────────────────────────────┘")
	window := prompt.DraftWindow(draft, []string{revision}, prompt.DraftWindowSize)
	critiqueSystem, critiqueUser := prompt.CritiquePrompts(set, query, revision, window)
	printPrompt("SYSTEM", critiqueSystem)
	printPrompt("USER", critiqueUser)

	// ==========================
	// PHASE 3: REVISION
	// ==========================
	fmt.Println("\n┌──────────────────────────────────────────────────────────────────────────────┐")
	fmt.Println("│  PHASE 3: REVISION                                                           │")
	fmt.Println("└──────────────────────────────────────────────────────────────────────────────┘")
	revisionSystem, revisionUser := prompt.RevisionPrompts(set, query, revision, critique)
	printPrompt("SYSTEM", revisionSystem)
	printPrompt("USER", revisionUser)

	// ==========================
	// FINGERPRINT SUMMARY
	// ==========================
	fmt.Println("\n╔══════════════════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                             FINGERPRINT SUMMARY                               ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════════════════════╝")

	rendered := []string{draftSystem, draftUser, critiqueSystem, critiqueUser, revisionSystem, revisionUser}
	leaks := 0
	for _, text := range rendered {
		for _, fp := range placeholderFingerprints {
			if strings.Contains(text, fp) {
				fmt.Printf("❌ Unrendered placeholder %s leaked into a prompt\n", fp)
				leaks++
			}
		}
	}
	if leaks == 0 {
		fmt.Println("✅ No unrendered placeholders leaked")
	}

	if cfg.DomainContext != "" {
		inAll := strings.Contains(draftSystem, cfg.DomainContext) &&
			strings.Contains(critiqueSystem, cfg.DomainContext) &&
			strings.Contains(revisionSystem, cfg.DomainContext)
		if inAll {
			fmt.Println("✅ Domain context present in all three system prompts")
		} else {
			fmt.Println("❌ Domain context missing from at least one system prompt")
		}
	} else {
		fmt.Println("ℹ️  Kind has no domain context, system prompts stay generic")
	}

	if leaks > 0 {
		os.Exit(1)
	}
}

func printPrompt(label, text string) {
	fmt.Printf("\n📤 %s (%d chars):\n", label, len(text))
	fmt.Println(strings.Repeat("-", 80))
	fmt.Println(text)
	fmt.Println(strings.Repeat("-", 80))
}
