package theme

import (
	"testing"

	"voiceterm/internal/termfam"
)

func TestResolveReturnsPreferredWhenSupported(t *testing.T) {
	if got := Resolve(termfam.ColorModeTrueColor, Feature256Palette); got != Feature256Palette {
		t.Fatalf("got %v, want Feature256Palette", got)
	}
	if got := Resolve(termfam.ColorModeANSI256, Feature256Palette); got != Feature256Palette {
		t.Fatalf("got %v, want Feature256Palette", got)
	}
}

func TestResolveFallsBackWhenPreferredExceedsMode(t *testing.T) {
	got := Resolve(termfam.ColorModeANSI, FeatureTrueColorGradient)
	if got != FeatureANSI16 {
		t.Fatalf("got %v, want fallback to FeatureANSI16", got)
	}
}

func TestResolveMonochromeAlwaysFallsToMonochrome(t *testing.T) {
	got := Resolve(termfam.ColorModeNone, FeatureTrueColorGradient)
	if got != FeatureMonochrome {
		t.Fatalf("got %v, want FeatureMonochrome", got)
	}
}

func TestNegotiateCarriesModeAndDarkBackground(t *testing.T) {
	hints := termfam.ColorHints{Mode: termfam.ColorModeANSI256, DarkBackground: true}
	caps := Negotiate(hints)
	if caps.Mode != termfam.ColorModeANSI256 || !caps.DarkBG {
		t.Fatalf("got %+v, want mode ANSI256 and DarkBG true", caps)
	}
	if caps.MaxFeature != Feature256Palette {
		t.Fatalf("got max feature %v, want Feature256Palette", caps.MaxFeature)
	}
}

func TestCapabilitiesSupportsChecksRank(t *testing.T) {
	caps := Negotiate(termfam.ColorHints{Mode: termfam.ColorModeANSI})
	if caps.Supports(FeatureTrueColorGradient) {
		t.Fatalf("ANSI mode should not support truecolor gradient")
	}
	if !caps.Supports(FeatureANSI16) {
		t.Fatalf("ANSI mode should support its own tier")
	}
	if !caps.Supports(FeatureMonochrome) {
		t.Fatalf("every mode should support monochrome")
	}
}

func TestCapabilitiesResolveFeatureDelegatesToResolve(t *testing.T) {
	caps := Negotiate(termfam.ColorHints{Mode: termfam.ColorModeANSI256})
	if got := caps.ResolveFeature(FeatureTrueColorGradient); got != Feature256Palette {
		t.Fatalf("got %v, want Feature256Palette", got)
	}
}

func TestFeatureNamesAreNonEmpty(t *testing.T) {
	for _, f := range featureChain {
		if f.String() == "" {
			t.Fatalf("feature %v has empty name", f)
		}
	}
}

func TestFeatureChainOrderedRichestToBasic(t *testing.T) {
	if featureChain[0] != FeatureTrueColorGradient {
		t.Fatalf("chain should start at FeatureTrueColorGradient, got %v", featureChain[0])
	}
	if featureChain[len(featureChain)-1] != FeatureMonochrome {
		t.Fatalf("chain should end at FeatureMonochrome, got %v", featureChain[len(featureChain)-1])
	}
}
